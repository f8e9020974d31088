package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// schemaVersion is the target PRAGMA user_version. Increment when adding a
// migration step.
const schemaVersion = 2

// ErrSchemaTooNew indicates the on-disk store was written by a newer release
// than this binary supports. Never downgraded automatically.
var ErrSchemaTooNew = errors.New("database schema is newer than supported")

// EnsureSchema creates all tables if absent and runs the migration ladder up
// to the current version. It is idempotent and safe to run on any
// connection, including scratch stores built during restore validation.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if err := createTables(ctx, conn); err != nil {
		return err
	}
	return applyMigrations(ctx, conn)
}

func createTables(ctx context.Context, conn *sql.Conn) error {
	const providersDDL = `CREATE TABLE IF NOT EXISTS providers (
		id TEXT NOT NULL,
		app_type TEXT NOT NULL,
		name TEXT NOT NULL,
		settings_config TEXT NOT NULL,
		website_url TEXT,
		category TEXT,
		created_at INTEGER,
		sort_index INTEGER,
		notes TEXT,
		icon TEXT,
		icon_color TEXT,
		meta TEXT NOT NULL DEFAULT '{}',
		is_current BOOLEAN NOT NULL DEFAULT 0,
		is_proxy_target BOOLEAN NOT NULL DEFAULT 0,
		PRIMARY KEY (id, app_type)
	)`
	if _, err := conn.ExecContext(ctx, providersDDL); err != nil {
		return fmt.Errorf("create providers table: %w", err)
	}

	const endpointsDDL = `CREATE TABLE IF NOT EXISTS provider_endpoints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider_id TEXT NOT NULL,
		app_type TEXT NOT NULL,
		url TEXT NOT NULL,
		added_at INTEGER,
		FOREIGN KEY (provider_id, app_type) REFERENCES providers(id, app_type) ON DELETE CASCADE
	)`
	if _, err := conn.ExecContext(ctx, endpointsDDL); err != nil {
		return fmt.Errorf("create provider_endpoints table: %w", err)
	}

	const settingsDDL = `CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	)`
	if _, err := conn.ExecContext(ctx, settingsDDL); err != nil {
		return fmt.Errorf("create settings table: %w", err)
	}

	return nil
}

// applyMigrations walks the version ladder from the stored user_version up
// to schemaVersion. The whole walk runs inside one savepoint: any step's
// failure rolls back every step applied in this call, leaving the version
// untouched.
func applyMigrations(ctx context.Context, conn *sql.Conn) error {
	if _, err := conn.ExecContext(ctx, "SAVEPOINT schema_migration"); err != nil {
		return fmt.Errorf("create migration savepoint: %w", err)
	}

	rollback := func() {
		_, _ = conn.ExecContext(ctx, "ROLLBACK TO schema_migration")
		_, _ = conn.ExecContext(ctx, "RELEASE schema_migration")
	}

	version, err := userVersion(ctx, conn)
	if err != nil {
		rollback()
		return err
	}

	if version > schemaVersion {
		rollback()
		return fmt.Errorf("database version %d, supported %d: %w", version, schemaVersion, ErrSchemaTooNew)
	}

	for version < schemaVersion {
		var step func(context.Context, *sql.Conn) error
		switch version {
		case 0:
			step = migrateV0ToV1
		case 1:
			step = migrateV1ToV2
		default:
			rollback()
			return fmt.Errorf("unknown database version %d, cannot migrate to %d", version, schemaVersion)
		}

		slog.Info("migrating database schema", "from", version, "to", version+1)
		if err := step(ctx, conn); err != nil {
			rollback()
			return err
		}
		if err := setUserVersion(ctx, conn, version+1); err != nil {
			rollback()
			return err
		}

		version, err = userVersion(ctx, conn)
		if err != nil {
			rollback()
			return err
		}
	}

	if _, err := conn.ExecContext(ctx, "RELEASE schema_migration"); err != nil {
		rollback()
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// migrateV0ToV1 adds the columns introduced after the first release.
func migrateV0ToV1(ctx context.Context, conn *sql.Conn) error {
	providerColumns := []struct{ name, definition string }{
		{"category", "TEXT"},
		{"created_at", "INTEGER"},
		{"sort_index", "INTEGER"},
		{"notes", "TEXT"},
		{"icon", "TEXT"},
		{"icon_color", "TEXT"},
		{"meta", "TEXT NOT NULL DEFAULT '{}'"},
		{"is_current", "BOOLEAN NOT NULL DEFAULT 0"},
	}
	for _, col := range providerColumns {
		if _, err := addColumnIfMissing(ctx, conn, "providers", col.name, col.definition); err != nil {
			return err
		}
	}

	_, err := addColumnIfMissing(ctx, conn, "provider_endpoints", "added_at", "INTEGER")
	return err
}

// migrateV1ToV2 adds the proxy target flag.
func migrateV1ToV2(ctx context.Context, conn *sql.Conn) error {
	_, err := addColumnIfMissing(ctx, conn, "providers", "is_proxy_target", "BOOLEAN NOT NULL DEFAULT 0")
	return err
}

func userVersion(ctx context.Context, conn *sql.Conn) (int, error) {
	var version int
	if err := conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(ctx context.Context, conn *sql.Conn, version int) error {
	if version < 0 {
		return fmt.Errorf("user_version cannot be negative: %d", version)
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("write user_version %d: %w", version, err)
	}
	return nil
}

// validateIdentifier rejects any table or column name outside the
// [A-Za-z0-9_] allow-list. This is the only protection between dynamic
// identifiers and the DDL text they are interpolated into; never relax it.
func validateIdentifier(s, kind string) error {
	if s == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			continue
		}
		return fmt.Errorf("invalid %s %q: only letters, numbers and underscores allowed", kind, s)
	}
	return nil
}

func tableExists(ctx context.Context, conn *sql.Conn, table string) (bool, error) {
	if err := validateIdentifier(table, "table name"); err != nil {
		return false, err
	}

	rows, err := conn.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return false, fmt.Errorf("read table names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, fmt.Errorf("scan table name: %w", err)
		}
		if strings.EqualFold(name, table) {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate table names: %w", err)
	}
	return false, nil
}

func hasColumn(ctx context.Context, conn *sql.Conn, table, column string) (bool, error) {
	if err := validateIdentifier(table, "table name"); err != nil {
		return false, err
	}
	if err := validateIdentifier(column, "column name"); err != nil {
		return false, err
	}

	rows, err := conn.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info("%s")`, table))
	if err != nil {
		return false, fmt.Errorf("read table info for %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid, notNull, pk int
			name, colType    string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return false, fmt.Errorf("scan table info: %w", err)
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate table info: %w", err)
	}
	return false, nil
}

// addColumnIfMissing adds a column with the given definition when the table
// lacks it. Returns true when the column was added.
func addColumnIfMissing(ctx context.Context, conn *sql.Conn, table, column, definition string) (bool, error) {
	if err := validateIdentifier(table, "table name"); err != nil {
		return false, err
	}
	if err := validateIdentifier(column, "column name"); err != nil {
		return false, err
	}

	exists, err := tableExists(ctx, conn, table)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("table %s does not exist, cannot add column %s", table, column)
	}

	present, err := hasColumn(ctx, conn, table, column)
	if err != nil {
		return false, err
	}
	if present {
		return false, nil
	}

	ddl := fmt.Sprintf(`ALTER TABLE "%s" ADD COLUMN "%s" %s`, table, column, definition)
	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		return false, fmt.Errorf("add column %s to %s: %w", column, table, err)
	}
	slog.Info("added missing column", "table", table, "column", column)
	return true, nil
}
