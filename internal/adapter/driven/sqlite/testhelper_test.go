package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

// setupTestDB creates an isolated in-memory database with the schema
// applied. The single-connection pool keeps the memory database alive for
// the duration of the test.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewMemoryDB(context.Background())
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// setupFileDB creates a file-backed database under a temp directory, for
// tests exercising physical backups and the restore pipeline.
func setupFileDB(t *testing.T) (*DB, string) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "provswitch.db")
	db, err := NewDB(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("create test db at %s: %v", dbPath, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, dir
}
