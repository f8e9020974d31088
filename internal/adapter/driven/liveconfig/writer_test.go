package liveconfig

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provswitch/provswitch/internal/domain/model"
)

func testWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	dir := t.TempDir()
	w := NewWriterWithResolver(func(app model.AppType) (string, error) {
		return filepath.Join(dir, app.String(), "settings.json"), nil
	})
	return w, dir
}

func TestWriter_WritesPrettyJSON(t *testing.T) {
	w, dir := testWriter(t)

	err := w.Write(context.Background(), model.AppClaude, json.RawMessage(`{"b":2,"a":{"x":1}}`))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "claude", "settings.json"))
	require.NoError(t, err)

	assert.JSONEq(t, `{"a":{"x":1},"b":2}`, string(data))
	assert.Contains(t, string(data), "\n  ", "output should be indented")
}

func TestWriter_EmptyDocumentWritesEmptyObject(t *testing.T) {
	w, dir := testWriter(t)

	err := w.Write(context.Background(), model.AppCodex, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "codex", "settings.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestWriter_InvalidDocumentFails(t *testing.T) {
	w, dir := testWriter(t)

	err := w.Write(context.Background(), model.AppClaude, json.RawMessage(`{broken`))
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "claude", "settings.json"))
	assert.True(t, os.IsNotExist(statErr), "no file should be left behind")
}

func TestWriter_ReplacesExistingFile(t *testing.T) {
	w, dir := testWriter(t)
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, model.AppClaude, json.RawMessage(`{"v":1}`)))
	require.NoError(t, w.Write(ctx, model.AppClaude, json.RawMessage(`{"v":2}`)))

	data, err := os.ReadFile(filepath.Join(dir, "claude", "settings.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(data))
}
