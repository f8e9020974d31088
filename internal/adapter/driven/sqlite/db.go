// Package sqlite implements the driven storage ports over a single embedded
// SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// DB wraps the single physical connection to the store. The pool is capped
// at one connection so every statement runs on the same underlying handle,
// and mu serializes multi-statement spans (explicit transactions, the
// restore swap) across goroutines. No operation holds mu across anything
// but local disk I/O.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
	path string
}

// NewDB opens (creating if needed) the database file at dbPath with WAL
// mode, a busy timeout, and foreign keys enabled, then brings the schema to
// the current version.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	conn, err := openSQLite(dbPath, true)
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn, path: dbPath}
	if err := EnsureSchema(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// NewMemoryDB opens an isolated in-memory database with the schema applied.
// Used by tests and by restore validation.
func NewMemoryDB(ctx context.Context) (*DB, error) {
	conn, err := openSQLite(":memory:", false)
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn, path: ":memory:"}
	if err := EnsureSchema(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// openSQLite opens a single-connection handle on the given database.
// WAL mode is skipped for in-memory and scratch databases.
func openSQLite(path string, wal bool) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		path,
	)
	if wal {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

// withLock runs fn while holding the connection lock. The lock is released
// on every exit path, including panics inside fn.
func (db *DB) withLock(fn func() error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn()
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close closes the underlying connection.
func (db *DB) Close() error {
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
