package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/provswitch/provswitch/internal/domain/model"
	"github.com/provswitch/provswitch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProviderStore = (*ProviderRepo)(nil)

// ProviderRepo is the SQLite implementation of the ProviderStore port.
type ProviderRepo struct {
	db *DB
}

// NewProviderRepo creates a new ProviderRepo backed by the given DB.
func NewProviderRepo(db *DB) *ProviderRepo {
	return &ProviderRepo{db: db}
}

const providerColumns = `id, name, settings_config, website_url, category, created_at,
	sort_index, notes, icon, icon_color, meta, is_current, is_proxy_target`

// List returns all providers for the app type, ordered by sort index
// (missing last), then creation time, then id, with custom endpoints joined
// in ordered by added time, then URL.
func (r *ProviderRepo) List(ctx context.Context, app model.AppType) ([]model.Provider, error) {
	var providers []model.Provider

	err := r.db.withLock(func() error {
		query := fmt.Sprintf(`SELECT %s FROM providers WHERE app_type = ?
			ORDER BY COALESCE(sort_index, 999999), created_at ASC, id ASC`, providerColumns)
		rows, err := r.db.conn.QueryContext(ctx, query, app.String())
		if err != nil {
			return fmt.Errorf("list providers for %s: %w", app, err)
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanProvider(rows)
			if err != nil {
				return err
			}
			providers = append(providers, p)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate providers: %w", err)
		}

		endpoints, err := r.endpointsByProvider(ctx, app)
		if err != nil {
			return err
		}
		for i := range providers {
			providers[i].Meta.CustomEndpoints = endpoints[providers[i].ID]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return providers, nil
}

// CurrentID returns the id of the current provider for the app type, or
// ("", nil) when none is set.
func (r *ProviderRepo) CurrentID(ctx context.Context, app model.AppType) (string, error) {
	var id string

	err := r.db.withLock(func() error {
		const query = `SELECT id FROM providers WHERE app_type = ? AND is_current = 1 LIMIT 1`
		err := r.db.conn.QueryRowContext(ctx, query, app.String()).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get current provider for %s: %w", app, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Get returns the provider with the given id, or (nil, nil) when absent.
func (r *ProviderRepo) Get(ctx context.Context, app model.AppType, id string) (*model.Provider, error) {
	var provider *model.Provider

	err := r.db.withLock(func() error {
		query := fmt.Sprintf(`SELECT %s FROM providers WHERE id = ? AND app_type = ?`, providerColumns)
		row := r.db.conn.QueryRowContext(ctx, query, id, app.String())

		p, err := scanProvider(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		endpoints, err := r.endpointsFor(ctx, app, id)
		if err != nil {
			return err
		}
		p.Meta.CustomEndpoints = endpoints
		provider = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return provider, nil
}

// Save upserts the provider in one transaction. On update the stored
// is_current and is_proxy_target flags win over the caller-supplied values,
// and endpoints are left alone; on insert the endpoints carried in the meta
// are written as well.
func (r *ProviderRepo) Save(ctx context.Context, app model.AppType, p model.Provider) error {
	settingsJSON, err := encodeSettings(p.SettingsConfig)
	if err != nil {
		return err
	}
	metaJSON, err := json.Marshal(p.Meta.WithoutEndpoints())
	if err != nil {
		return fmt.Errorf("encode provider meta: %w", err)
	}

	return r.db.withLock(func() error {
		tx, err := r.db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var isCurrent, isProxyTarget bool
		err = tx.QueryRowContext(ctx,
			`SELECT is_current, is_proxy_target FROM providers WHERE id = ? AND app_type = ?`,
			p.ID, app.String(),
		).Scan(&isCurrent, &isProxyTarget)
		isUpdate := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check provider %q: %w", p.ID, err)
		}

		if isUpdate {
			const update = `UPDATE providers SET
				name = ?, settings_config = ?, website_url = ?, category = ?,
				created_at = ?, sort_index = ?, notes = ?, icon = ?, icon_color = ?,
				meta = ?, is_current = ?, is_proxy_target = ?
				WHERE id = ? AND app_type = ?`
			_, err = tx.ExecContext(ctx, update,
				p.Name, settingsJSON, p.WebsiteURL, p.Category,
				p.CreatedAt, p.SortIndex, p.Notes, p.Icon, p.IconColor,
				string(metaJSON), isCurrent, isProxyTarget,
				p.ID, app.String(),
			)
			if err != nil {
				return fmt.Errorf("update provider %q: %w", p.ID, err)
			}
		} else {
			const insert = `INSERT INTO providers (
				id, app_type, name, settings_config, website_url, category,
				created_at, sort_index, notes, icon, icon_color, meta, is_current, is_proxy_target
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
			_, err = tx.ExecContext(ctx, insert,
				p.ID, app.String(), p.Name, settingsJSON, p.WebsiteURL, p.Category,
				p.CreatedAt, p.SortIndex, p.Notes, p.Icon, p.IconColor,
				string(metaJSON), isCurrent, isProxyTarget,
			)
			if err != nil {
				return fmt.Errorf("insert provider %q: %w", p.ID, err)
			}

			const insertEndpoint = `INSERT INTO provider_endpoints (provider_id, app_type, url, added_at)
				VALUES (?, ?, ?, ?)`
			for url, ep := range p.Meta.CustomEndpoints {
				if _, err := tx.ExecContext(ctx, insertEndpoint, p.ID, app.String(), url, ep.AddedAt); err != nil {
					return fmt.Errorf("insert endpoint %q for provider %q: %w", url, p.ID, err)
				}
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit save provider %q: %w", p.ID, err)
		}
		return nil
	})
}

// Delete removes the provider row; endpoints cascade via the foreign key.
func (r *ProviderRepo) Delete(ctx context.Context, app model.AppType, id string) error {
	return r.db.withLock(func() error {
		const query = `DELETE FROM providers WHERE id = ? AND app_type = ?`
		if _, err := r.db.conn.ExecContext(ctx, query, id, app.String()); err != nil {
			return fmt.Errorf("delete provider %q: %w", id, err)
		}
		return nil
	})
}

// SetCurrent clears is_current for every provider in the app type, then sets
// it for id, in one transaction. A rollback leaves either the old current or
// no current, never two.
func (r *ProviderRepo) SetCurrent(ctx context.Context, app model.AppType, id string) error {
	return r.db.withLock(func() error {
		tx, err := r.db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`UPDATE providers SET is_current = 0 WHERE app_type = ?`, app.String()); err != nil {
			return fmt.Errorf("clear current provider for %s: %w", app, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE providers SET is_current = 1 WHERE id = ? AND app_type = ?`, id, app.String()); err != nil {
			return fmt.Errorf("set current provider %q: %w", id, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit set current %q: %w", id, err)
		}
		return nil
	})
}

// AddEndpoint inserts a custom endpoint for the provider.
func (r *ProviderRepo) AddEndpoint(ctx context.Context, app model.AppType, providerID, url string) error {
	return r.db.withLock(func() error {
		const query = `INSERT INTO provider_endpoints (provider_id, app_type, url, added_at)
			VALUES (?, ?, ?, ?)`
		addedAt := time.Now().UnixMilli()
		if _, err := r.db.conn.ExecContext(ctx, query, providerID, app.String(), url, addedAt); err != nil {
			return fmt.Errorf("add endpoint %q for provider %q: %w", url, providerID, err)
		}
		return nil
	})
}

// RemoveEndpoint deletes a custom endpoint by URL.
func (r *ProviderRepo) RemoveEndpoint(ctx context.Context, app model.AppType, providerID, url string) error {
	return r.db.withLock(func() error {
		const query = `DELETE FROM provider_endpoints WHERE provider_id = ? AND app_type = ? AND url = ?`
		if _, err := r.db.conn.ExecContext(ctx, query, providerID, app.String(), url); err != nil {
			return fmt.Errorf("remove endpoint %q for provider %q: %w", url, providerID, err)
		}
		return nil
	})
}

// endpointsByProvider loads every endpoint in the app type in one query,
// grouped by provider id, preserving (added_at, url) order.
func (r *ProviderRepo) endpointsByProvider(ctx context.Context, app model.AppType) (map[string]map[string]model.CustomEndpoint, error) {
	const query = `SELECT provider_id, url, added_at FROM provider_endpoints
		WHERE app_type = ? ORDER BY added_at ASC, url ASC`
	rows, err := r.db.conn.QueryContext(ctx, query, app.String())
	if err != nil {
		return nil, fmt.Errorf("list endpoints for %s: %w", app, err)
	}
	defer rows.Close()

	grouped := make(map[string]map[string]model.CustomEndpoint)
	for rows.Next() {
		var (
			providerID, url string
			addedAt         sql.NullInt64
		)
		if err := rows.Scan(&providerID, &url, &addedAt); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		if grouped[providerID] == nil {
			grouped[providerID] = make(map[string]model.CustomEndpoint)
		}
		grouped[providerID][url] = model.CustomEndpoint{URL: url, AddedAt: addedAt.Int64}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate endpoints: %w", err)
	}
	return grouped, nil
}

func (r *ProviderRepo) endpointsFor(ctx context.Context, app model.AppType, providerID string) (map[string]model.CustomEndpoint, error) {
	const query = `SELECT url, added_at FROM provider_endpoints
		WHERE provider_id = ? AND app_type = ? ORDER BY added_at ASC, url ASC`
	rows, err := r.db.conn.QueryContext(ctx, query, providerID, app.String())
	if err != nil {
		return nil, fmt.Errorf("list endpoints for provider %q: %w", providerID, err)
	}
	defer rows.Close()

	endpoints := make(map[string]model.CustomEndpoint)
	for rows.Next() {
		var (
			url     string
			addedAt sql.NullInt64
		)
		if err := rows.Scan(&url, &addedAt); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		endpoints[url] = model.CustomEndpoint{URL: url, AddedAt: addedAt.Int64}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate endpoints: %w", err)
	}
	return endpoints, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (model.Provider, error) {
	var (
		p                        model.Provider
		settingsStr, metaStr     string
		isCurrent, isProxyTarget bool
	)
	err := row.Scan(
		&p.ID, &p.Name, &settingsStr, &p.WebsiteURL, &p.Category, &p.CreatedAt,
		&p.SortIndex, &p.Notes, &p.Icon, &p.IconColor, &metaStr, &isCurrent, &isProxyTarget,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return p, err
	}
	if err != nil {
		return p, fmt.Errorf("scan provider: %w", err)
	}

	p.SettingsConfig = decodeSettings(settingsStr)
	p.Meta = decodeMeta(metaStr)
	p.IsCurrent = isCurrent
	p.IsProxyTarget = isProxyTarget
	return p, nil
}

func encodeSettings(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "null", nil
	}
	if !json.Valid(raw) {
		return "", fmt.Errorf("encode settings config: invalid JSON document")
	}
	return string(raw), nil
}

// decodeSettings downgrades a malformed stored document to the JSON null
// literal instead of failing the read, matching historical behavior. A
// stricter mode would fail the whole read here.
func decodeSettings(s string) json.RawMessage {
	if !json.Valid([]byte(s)) {
		return json.RawMessage("null")
	}
	return json.RawMessage(s)
}

// decodeMeta downgrades malformed meta JSON to the zero value. See
// decodeSettings.
func decodeMeta(s string) model.ProviderMeta {
	var meta model.ProviderMeta
	if err := json.Unmarshal([]byte(s), &meta); err != nil {
		return model.ProviderMeta{}
	}
	meta.CustomEndpoints = nil
	return meta
}
