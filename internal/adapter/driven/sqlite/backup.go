package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/provswitch/provswitch/internal/domain/port/driven"
)

// backupRetainCount is how many physical backup artifacts are kept; older
// ones are pruned after each new backup.
const backupRetainCount = 5

// Compile-time interface satisfaction check.
var _ driven.BackupEngine = (*BackupEngine)(nil)

// BackupEngine produces physical snapshots and logical SQL dumps of the
// store and drives the restore pipeline. Restore never touches the live
// store until the imported dump has been sanitized, loaded into an isolated
// scratch store, migrated, and validated; only the final swap mutates the
// live database, under one lock acquisition.
type BackupEngine struct {
	db         *DB
	backupsDir string
	retain     int
}

// NewBackupEngine creates a BackupEngine writing artifacts to backupsDir.
func NewBackupEngine(db *DB, backupsDir string) *BackupEngine {
	return &BackupEngine{db: db, backupsDir: backupsDir, retain: backupRetainCount}
}

// ExportSQL writes a logical SQL dump of the entire store to path. The live
// lock is held only while the store is copied into an isolated snapshot; the
// dump is serialized from the snapshot and written with temp-file-then-rename
// semantics, so a crash mid-write never leaves a half-written file.
func (e *BackupEngine) ExportSQL(ctx context.Context, path string) error {
	tmpDir, err := os.MkdirTemp("", "provswitch-export-")
	if err != nil {
		return fmt.Errorf("create export scratch dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshotPath := filepath.Join(tmpDir, "snapshot.db")
	if err := e.copyLiveTo(ctx, snapshotPath); err != nil {
		return err
	}

	snapshot, err := openSQLite(snapshotPath, false)
	if err != nil {
		return err
	}
	defer snapshot.Close()

	dump, err := dumpSQL(ctx, snapshot)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := atomic.WriteFile(path, strings.NewReader(dump)); err != nil {
		return fmt.Errorf("write export to %s: %w", path, err)
	}
	return nil
}

// ImportSQL replaces the entire live store with the contents of the SQL file
// at path. Returns the id of the pre-restore backup, or "" when the live
// store did not exist beforehand.
func (e *BackupEngine) ImportSQL(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", path, driven.ErrBackupSourceNotFound)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	sanitized := sanitizeImportSQL(string(raw))

	// Protect the current store before anything else can go wrong.
	backupID, err := e.preRestoreBackup(ctx)
	if err != nil {
		return "", err
	}

	scratchPath, cleanup, err := e.loadScratch(ctx, sanitized)
	if err != nil {
		return "", err
	}
	defer cleanup()

	if err := e.swapFrom(ctx, scratchPath); err != nil {
		return "", err
	}
	return backupID, nil
}

// Snapshot takes a physical page-level backup of the live store into the
// backups directory and prunes old artifacts.
func (e *BackupEngine) Snapshot(ctx context.Context) (string, error) {
	if err := os.MkdirAll(e.backupsDir, 0o755); err != nil {
		return "", fmt.Errorf("create backups dir: %w", err)
	}

	backupID := fmt.Sprintf("db_backup_%s", time.Now().UTC().Format("20060102_150405"))
	dest := filepath.Join(e.backupsDir, backupID+".db")

	// A snapshot taken within the same second replaces the previous one;
	// VACUUM INTO refuses to overwrite.
	_ = os.Remove(dest)

	if err := e.copyLiveTo(ctx, dest); err != nil {
		return "", err
	}

	e.pruneBackups()
	return backupID, nil
}

// preRestoreBackup snapshots the live store unless it does not exist yet
// (first import into a fresh installation — nothing to protect).
func (e *BackupEngine) preRestoreBackup(ctx context.Context) (string, error) {
	if e.db.path == ":memory:" {
		return "", nil
	}
	if _, err := os.Stat(e.db.path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("stat database file: %w", err)
	}
	return e.Snapshot(ctx)
}

// copyLiveTo writes a page-level copy of the live store to dest, holding the
// lock only for the duration of the copy.
func (e *BackupEngine) copyLiveTo(ctx context.Context, dest string) error {
	return e.db.withLock(func() error {
		stmt := fmt.Sprintf("VACUUM INTO %s", quoteSQLText(dest))
		if _, err := e.db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("snapshot database to %s: %w", dest, err)
		}
		return nil
	})
}

// loadScratch executes the sanitized dump against a brand-new temporary
// store, brings its schema current, and sanity-checks it. The live store is
// untouched throughout. Returns the scratch file path and a cleanup func.
func (e *BackupEngine) loadScratch(ctx context.Context, sanitized string) (string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "provswitch-restore-")
	if err != nil {
		return "", nil, fmt.Errorf("create restore scratch dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	scratchPath := filepath.Join(tmpDir, "scratch.db")
	scratch, err := openSQLite(scratchPath, false)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	defer scratch.Close()

	if _, err := scratch.ExecContext(ctx, sanitized); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("sql import failed: %w", err)
	}

	// A dump from an older release may lack tables or columns; bring the
	// scratch store current before validating it.
	if err := EnsureSchema(ctx, scratch); err != nil {
		cleanup()
		return "", nil, err
	}

	var providerCount int64
	if err := scratch.QueryRowContext(ctx, "SELECT COUNT(*) FROM providers").Scan(&providerCount); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("validate imported store: %w", err)
	}
	if providerCount == 0 {
		slog.Warn("imported SQL contains no provider data")
	}

	return scratchPath, cleanup, nil
}

// swapFrom replaces the live store's entire contents with the validated
// scratch store's rows in one transaction under one lock acquisition. This
// is the only restore step that mutates the live store.
func (e *BackupEngine) swapFrom(ctx context.Context, scratchPath string) error {
	return e.db.withLock(func() error {
		conn, err := e.db.conn.Conn(ctx)
		if err != nil {
			return fmt.Errorf("acquire connection: %w", err)
		}
		defer conn.Close()

		attach := fmt.Sprintf("ATTACH DATABASE %s AS restore_src", quoteSQLText(scratchPath))
		if _, err := conn.ExecContext(ctx, attach); err != nil {
			return fmt.Errorf("attach scratch store: %w", err)
		}
		defer func() { _, _ = conn.ExecContext(ctx, "DETACH DATABASE restore_src") }()

		if err := copyAttached(ctx, conn); err != nil {
			return err
		}
		return nil
	})
}

// copyAttached copies every table from restore_src onto the main database
// inside one transaction. ATTACH cannot run inside a transaction, so the
// caller attaches first and the copy itself is the atomic unit.
func copyAttached(ctx context.Context, conn *sql.Conn) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin swap transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`DELETE FROM provider_endpoints`,
		`DELETE FROM providers`,
		`DELETE FROM settings`,
		`INSERT INTO providers (id, app_type, name, settings_config, website_url, category,
			created_at, sort_index, notes, icon, icon_color, meta, is_current, is_proxy_target)
			SELECT id, app_type, name, settings_config, website_url, category,
			created_at, sort_index, notes, icon, icon_color, meta, is_current, is_proxy_target
			FROM restore_src.providers`,
		`INSERT INTO provider_endpoints (provider_id, app_type, url, added_at)
			SELECT provider_id, app_type, url, added_at FROM restore_src.provider_endpoints`,
		`INSERT INTO settings (key, value) SELECT key, value FROM restore_src.settings`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("swap store contents: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit swap: %w", err)
	}
	return nil
}

// sanitizeImportSQL drops any statement referencing sqlite_sequence, the
// engine's autoincrement bookkeeping, which must never be replayed against a
// fresh target. Statements are split on ';' and matched case-insensitively.
func sanitizeImportSQL(raw string) string {
	var b strings.Builder
	for _, stmt := range strings.Split(raw, ";") {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		if strings.Contains(strings.ToLower(trimmed), "sqlite_sequence") {
			continue
		}
		b.WriteString(trimmed)
		b.WriteString(";\n")
	}
	return b.String()
}

// pruneBackups keeps the newest retain .db artifacts by modification time.
// Pruning failures are logged, never fatal.
func (e *BackupEngine) pruneBackups() {
	entries, err := os.ReadDir(e.backupsDir)
	if err != nil {
		slog.Warn("failed to read backups dir", "dir", e.backupsDir, "error", err)
		return
	}

	type artifact struct {
		path    string
		modTime time.Time
	}
	var artifacts []artifact
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, artifact{
			path:    filepath.Join(e.backupsDir, entry.Name()),
			modTime: info.ModTime(),
		})
	}
	if len(artifacts) <= e.retain {
		return
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].modTime.Before(artifacts[j].modTime) })
	for _, old := range artifacts[:len(artifacts)-e.retain] {
		if err := os.Remove(old.path); err != nil {
			slog.Warn("failed to remove old backup", "path", old.path, "error", err)
		}
	}
}
