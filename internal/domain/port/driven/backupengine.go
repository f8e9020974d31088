package driven

import (
	"context"
	"errors"
)

// Sentinel errors returned by BackupEngine implementations.
var (
	// ErrBackupSourceNotFound indicates the SQL file passed to ImportSQL
	// does not exist. Returned before the live store is touched.
	ErrBackupSourceNotFound = errors.New("backup source file not found")
)

// BackupEngine defines the driven port for physical and logical backups of
// the whole store, independent of the provider DAO.
type BackupEngine interface {
	// ExportSQL writes a logical SQL dump of the entire store to path using
	// temp-file-then-rename semantics.
	ExportSQL(ctx context.Context, path string) error

	// ImportSQL replaces the entire live store with the contents of the SQL
	// file at path. The live store is mutated only after the dump has been
	// sanitized, loaded into an isolated scratch store, migrated, and
	// validated. Returns the id of the pre-restore physical backup, or ""
	// when the live store did not exist beforehand.
	ImportSQL(ctx context.Context, path string) (backupID string, err error)

	// Snapshot takes a physical page-level backup of the live store into
	// the backups directory and prunes old artifacts. Returns the backup id.
	Snapshot(ctx context.Context) (backupID string, err error)
}
