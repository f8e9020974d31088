package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/provswitch/provswitch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SettingsStore = (*SettingsRepo)(nil)

// SettingsRepo is the SQLite implementation of the SettingsStore port,
// backed by the free-form settings key/value table.
type SettingsRepo struct {
	db *DB
}

// NewSettingsRepo creates a new SettingsRepo backed by the given DB.
func NewSettingsRepo(db *DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// Get returns the value for key, or ("", nil) when the key is absent.
func (r *SettingsRepo) Get(ctx context.Context, key string) (string, error) {
	var value sql.NullString

	err := r.db.withLock(func() error {
		const query = `SELECT value FROM settings WHERE key = ?`
		err := r.db.conn.QueryRowContext(ctx, query, key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get setting %q: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return value.String, nil
}

// Set stores or replaces the value for key.
func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	return r.db.withLock(func() error {
		const query = `INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`
		if _, err := r.db.conn.ExecContext(ctx, query, key, value); err != nil {
			return fmt.Errorf("set setting %q: %w", key, err)
		}
		return nil
	})
}

// Delete removes the key.
func (r *SettingsRepo) Delete(ctx context.Context, key string) error {
	return r.db.withLock(func() error {
		const query = `DELETE FROM settings WHERE key = ?`
		if _, err := r.db.conn.ExecContext(ctx, query, key); err != nil {
			return fmt.Errorf("delete setting %q: %w", key, err)
		}
		return nil
	})
}

// All returns every key/value pair.
func (r *SettingsRepo) All(ctx context.Context) (map[string]string, error) {
	settings := make(map[string]string)

	err := r.db.withLock(func() error {
		const query = `SELECT key, value FROM settings ORDER BY key`
		rows, err := r.db.conn.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("list settings: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				key   string
				value sql.NullString
			)
			if err := rows.Scan(&key, &value); err != nil {
				return fmt.Errorf("scan setting: %w", err)
			}
			settings[key] = value.String
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}
