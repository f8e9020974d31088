package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsRepo_SetGetDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSettingsRepo(db)
	ctx := context.Background()

	got, err := repo.Get(ctx, "default_app")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, repo.Set(ctx, "default_app", "codex"))
	got, err = repo.Get(ctx, "default_app")
	require.NoError(t, err)
	assert.Equal(t, "codex", got)

	// Set replaces.
	require.NoError(t, repo.Set(ctx, "default_app", "gemini"))
	got, err = repo.Get(ctx, "default_app")
	require.NoError(t, err)
	assert.Equal(t, "gemini", got)

	require.NoError(t, repo.Delete(ctx, "default_app"))
	got, err = repo.Get(ctx, "default_app")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSettingsRepo_All(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSettingsRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "a", "1"))
	require.NoError(t, repo.Set(ctx, "b", "2"))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)
}
