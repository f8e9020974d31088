package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provswitch/provswitch/internal/domain/model"
	"github.com/provswitch/provswitch/internal/domain/port/driven"
)

type fakeProviderStore struct {
	providers map[string]model.Provider
	currentID string
	setErr    error
}

func (f *fakeProviderStore) List(ctx context.Context, app model.AppType) ([]model.Provider, error) {
	return nil, nil
}

func (f *fakeProviderStore) CurrentID(ctx context.Context, app model.AppType) (string, error) {
	return f.currentID, nil
}

func (f *fakeProviderStore) Get(ctx context.Context, app model.AppType, id string) (*model.Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeProviderStore) Save(ctx context.Context, app model.AppType, p model.Provider) error {
	f.providers[p.ID] = p
	return nil
}

func (f *fakeProviderStore) Delete(ctx context.Context, app model.AppType, id string) error {
	delete(f.providers, id)
	return nil
}

func (f *fakeProviderStore) SetCurrent(ctx context.Context, app model.AppType, id string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.currentID = id
	return nil
}

func (f *fakeProviderStore) AddEndpoint(ctx context.Context, app model.AppType, providerID, url string) error {
	return nil
}

func (f *fakeProviderStore) RemoveEndpoint(ctx context.Context, app model.AppType, providerID, url string) error {
	return nil
}

type fakeLiveWriter struct {
	writes []json.RawMessage
	err    error
}

func (f *fakeLiveWriter) Write(ctx context.Context, app model.AppType, settings json.RawMessage) error {
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, settings)
	return nil
}

func TestSwitchService_Use(t *testing.T) {
	store := &fakeProviderStore{providers: map[string]model.Provider{
		"p1": {ID: "p1", Name: "A", SettingsConfig: json.RawMessage(`{"k":1}`)},
	}}
	writer := &fakeLiveWriter{}
	svc := NewSwitchService(store, writer)

	require.NoError(t, svc.Use(context.Background(), model.AppClaude, "p1"))

	assert.Equal(t, "p1", store.currentID)
	require.Len(t, writer.writes, 1)
	assert.JSONEq(t, `{"k":1}`, string(writer.writes[0]))
}

func TestSwitchService_UseUnknownProvider(t *testing.T) {
	store := &fakeProviderStore{providers: map[string]model.Provider{}}
	svc := NewSwitchService(store, &fakeLiveWriter{})

	err := svc.Use(context.Background(), model.AppClaude, "nope")
	require.ErrorIs(t, err, driven.ErrProviderNotFound)
	assert.Empty(t, store.currentID)
}

func TestSwitchService_LiveWriteFailureDoesNotRollBack(t *testing.T) {
	store := &fakeProviderStore{providers: map[string]model.Provider{
		"p1": {ID: "p1", Name: "A", SettingsConfig: json.RawMessage(`{}`)},
	}}
	writer := &fakeLiveWriter{err: errors.New("disk full")}
	svc := NewSwitchService(store, writer)

	// The database switch wins; the projection failure is only a warning.
	require.NoError(t, svc.Use(context.Background(), model.AppClaude, "p1"))
	assert.Equal(t, "p1", store.currentID)
}

func TestSwitchService_SetCurrentFailurePropagates(t *testing.T) {
	store := &fakeProviderStore{
		providers: map[string]model.Provider{"p1": {ID: "p1"}},
		setErr:    errors.New("database is locked"),
	}
	writer := &fakeLiveWriter{}
	svc := NewSwitchService(store, writer)

	err := svc.Use(context.Background(), model.AppClaude, "p1")
	require.Error(t, err)
	assert.Empty(t, writer.writes, "no live config write after a failed switch")
}
