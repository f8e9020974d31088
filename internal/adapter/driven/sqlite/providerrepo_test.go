package sqlite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provswitch/provswitch/internal/domain/model"
)

func newTestProvider(id, name string) model.Provider {
	createdAt := int64(1700000000000)
	return model.Provider{
		ID:             id,
		Name:           name,
		SettingsConfig: json.RawMessage(`{"k":1}`),
		CreatedAt:      &createdAt,
	}
}

func TestProviderRepo_SaveAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepo(db)
	ctx := context.Background()

	website := "https://example.com"
	category := "official"
	notes := "primary account"
	sortIndex := int64(3)

	p := newTestProvider("p1", "A")
	p.WebsiteURL = &website
	p.Category = &category
	p.Notes = &notes
	p.SortIndex = &sortIndex
	p.Meta.UsageScript = "usage.sh"

	require.NoError(t, repo.Save(ctx, model.AppClaude, p))

	got, err := repo.Get(ctx, model.AppClaude, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, "A", got.Name)
	assert.JSONEq(t, `{"k":1}`, string(got.SettingsConfig))
	assert.Equal(t, &website, got.WebsiteURL)
	assert.Equal(t, &category, got.Category)
	assert.Equal(t, &notes, got.Notes)
	assert.Equal(t, &sortIndex, got.SortIndex)
	assert.Equal(t, "usage.sh", got.Meta.UsageScript)
	assert.False(t, got.IsCurrent)
	assert.False(t, got.IsProxyTarget)
}

func TestProviderRepo_GetAbsentIsNotAnError(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepo(db)

	got, err := repo.Get(context.Background(), model.AppClaude, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProviderRepo_SameIDAcrossNamespaces(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepo(db)
	ctx := context.Background()

	claude := newTestProvider("shared", "Claude profile")
	codex := newTestProvider("shared", "Codex profile")
	require.NoError(t, repo.Save(ctx, model.AppClaude, claude))
	require.NoError(t, repo.Save(ctx, model.AppCodex, codex))

	gotClaude, err := repo.Get(ctx, model.AppClaude, "shared")
	require.NoError(t, err)
	gotCodex, err := repo.Get(ctx, model.AppCodex, "shared")
	require.NoError(t, err)

	assert.Equal(t, "Claude profile", gotClaude.Name)
	assert.Equal(t, "Codex profile", gotCodex.Name)
}

func TestProviderRepo_UpdatePreservesFlags(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.AppClaude, newTestProvider("p1", "A")))
	require.NoError(t, repo.SetCurrent(ctx, model.AppClaude, "p1"))
	_, err := db.conn.ExecContext(ctx,
		`UPDATE providers SET is_proxy_target = 1 WHERE id = 'p1' AND app_type = 'claude'`)
	require.NoError(t, err)

	// An edit that claims both flags are off must not flip the stored state.
	edited := newTestProvider("p1", "A renamed")
	edited.IsCurrent = false
	edited.IsProxyTarget = false
	require.NoError(t, repo.Save(ctx, model.AppClaude, edited))

	got, err := repo.Get(ctx, model.AppClaude, "p1")
	require.NoError(t, err)
	assert.Equal(t, "A renamed", got.Name)
	assert.True(t, got.IsCurrent)
	assert.True(t, got.IsProxyTarget)
}

func TestProviderRepo_InsertSyncsEndpointsUpdateDoesNot(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepo(db)
	ctx := context.Background()

	p := newTestProvider("p1", "A")
	p.Meta.CustomEndpoints = map[string]model.CustomEndpoint{
		"https://api.one.test": {URL: "https://api.one.test", AddedAt: 100},
	}
	require.NoError(t, repo.Save(ctx, model.AppClaude, p))

	got, err := repo.Get(ctx, model.AppClaude, "p1")
	require.NoError(t, err)
	require.Len(t, got.Meta.CustomEndpoints, 1)

	// Re-saving with different endpoints in the meta must not touch the
	// endpoint table; only AddEndpoint/RemoveEndpoint do that.
	p.Meta.CustomEndpoints = map[string]model.CustomEndpoint{
		"https://api.two.test": {URL: "https://api.two.test", AddedAt: 200},
	}
	require.NoError(t, repo.Save(ctx, model.AppClaude, p))

	got, err = repo.Get(ctx, model.AppClaude, "p1")
	require.NoError(t, err)
	require.Len(t, got.Meta.CustomEndpoints, 1)
	assert.Contains(t, got.Meta.CustomEndpoints, "https://api.one.test")
}

func TestProviderRepo_AddRemoveEndpoint(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.AppClaude, newTestProvider("p1", "A")))
	require.NoError(t, repo.AddEndpoint(ctx, model.AppClaude, "p1", "https://api.test"))

	got, err := repo.Get(ctx, model.AppClaude, "p1")
	require.NoError(t, err)
	require.Contains(t, got.Meta.CustomEndpoints, "https://api.test")
	assert.Positive(t, got.Meta.CustomEndpoints["https://api.test"].AddedAt)

	require.NoError(t, repo.RemoveEndpoint(ctx, model.AppClaude, "p1", "https://api.test"))
	got, err = repo.Get(ctx, model.AppClaude, "p1")
	require.NoError(t, err)
	assert.NotContains(t, got.Meta.CustomEndpoints, "https://api.test")
}

func TestProviderRepo_DeleteCascadesEndpoints(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.AppClaude, newTestProvider("p1", "A")))
	require.NoError(t, repo.AddEndpoint(ctx, model.AppClaude, "p1", "https://api.test"))
	require.NoError(t, repo.Delete(ctx, model.AppClaude, "p1"))

	var count int
	require.NoError(t, db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM provider_endpoints WHERE provider_id = 'p1'`).Scan(&count))
	assert.Zero(t, count)
}

func TestProviderRepo_ListOrdering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepo(db)
	ctx := context.Background()

	second := newTestProvider("b", "Second")
	idx2 := int64(2)
	second.SortIndex = &idx2

	first := newTestProvider("a", "First")
	idx1 := int64(1)
	first.SortIndex = &idx1

	// No sort index sorts last regardless of id.
	unsorted := newTestProvider("0-unsorted", "Last")

	require.NoError(t, repo.Save(ctx, model.AppClaude, second))
	require.NoError(t, repo.Save(ctx, model.AppClaude, unsorted))
	require.NoError(t, repo.Save(ctx, model.AppClaude, first))

	providers, err := repo.List(ctx, model.AppClaude)
	require.NoError(t, err)
	require.Len(t, providers, 3)
	assert.Equal(t, "a", providers[0].ID)
	assert.Equal(t, "b", providers[1].ID)
	assert.Equal(t, "0-unsorted", providers[2].ID)
}

func TestProviderRepo_SetCurrent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.AppClaude, newTestProvider("p1", "A")))
	require.NoError(t, repo.SetCurrent(ctx, model.AppClaude, "p1"))

	current, err := repo.CurrentID(ctx, model.AppClaude)
	require.NoError(t, err)
	assert.Equal(t, "p1", current)

	// Idempotent: still exactly one current.
	require.NoError(t, repo.SetCurrent(ctx, model.AppClaude, "p1"))
	var count int
	require.NoError(t, db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM providers WHERE app_type = 'claude' AND is_current = 1`).Scan(&count))
	assert.Equal(t, 1, count)

	// Switching moves the flag.
	require.NoError(t, repo.Save(ctx, model.AppClaude, newTestProvider("p2", "B")))
	require.NoError(t, repo.SetCurrent(ctx, model.AppClaude, "p2"))

	current, err = repo.CurrentID(ctx, model.AppClaude)
	require.NoError(t, err)
	assert.Equal(t, "p2", current)

	p1, err := repo.Get(ctx, model.AppClaude, "p1")
	require.NoError(t, err)
	assert.False(t, p1.IsCurrent)

	require.NoError(t, db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM providers WHERE app_type = 'claude' AND is_current = 1`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestProviderRepo_SetCurrentScopedToNamespace(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, model.AppClaude, newTestProvider("p1", "A")))
	require.NoError(t, repo.Save(ctx, model.AppCodex, newTestProvider("p1", "A")))

	require.NoError(t, repo.SetCurrent(ctx, model.AppClaude, "p1"))

	codexCurrent, err := repo.CurrentID(ctx, model.AppCodex)
	require.NoError(t, err)
	assert.Empty(t, codexCurrent)
}

func TestProviderRepo_CurrentIDEmptyWhenNoneSet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepo(db)

	current, err := repo.CurrentID(context.Background(), model.AppGemini)
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestProviderRepo_MalformedStoredJSONDowngradesToDefault(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProviderRepo(db)
	ctx := context.Background()

	_, err := db.conn.ExecContext(ctx, `INSERT INTO providers
		(id, app_type, name, settings_config, meta)
		VALUES ('bad', 'claude', 'Broken', '{not json', '{also broken')`)
	require.NoError(t, err)

	got, err := repo.Get(ctx, model.AppClaude, "bad")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, json.RawMessage("null"), got.SettingsConfig)
	assert.Equal(t, model.ProviderMeta{}, got.Meta)
}
