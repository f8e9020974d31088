// Package driven defines secondary port interfaces for storage adapters.
package driven

import (
	"context"
	"errors"

	"github.com/provswitch/provswitch/internal/domain/model"
)

// ErrProviderNotFound is returned by callers that require a provider to
// exist. The store itself reports absence as an empty result, not an error;
// command handlers map empty results to this sentinel.
var ErrProviderNotFound = errors.New("provider not found")

// ProviderStore defines the driven port for provider profile persistence.
// Every operation is scoped by app type: the same provider id may exist
// independently under different app types.
type ProviderStore interface {
	// List returns all providers for the app type, ordered by sort index
	// (missing sorts last), then creation time, then id. Each provider
	// carries its custom endpoints ordered by added time, then URL.
	List(ctx context.Context, app model.AppType) ([]model.Provider, error)

	// CurrentID returns the id of the provider with is_current set, or
	// ("", nil) when the app type has no current provider.
	CurrentID(ctx context.Context, app model.AppType) (string, error)

	// Get returns the provider with the given id, or (nil, nil) when absent.
	Get(ctx context.Context, app model.AppType, id string) (*model.Provider, error)

	// Save upserts the provider in a single transaction. On update the
	// stored is_current and is_proxy_target flags are preserved and the
	// caller-supplied values ignored, so editing metadata can never flip
	// the active provider. Custom endpoints carried in the meta are
	// inserted only when the provider row is first created; afterwards
	// they change only through AddEndpoint/RemoveEndpoint.
	Save(ctx context.Context, app model.AppType, p model.Provider) error

	// Delete removes the provider row; endpoint rows cascade.
	Delete(ctx context.Context, app model.AppType, id string) error

	// SetCurrent clears is_current for every provider in the app type and
	// sets it for id, in one transaction.
	SetCurrent(ctx context.Context, app model.AppType, id string) error

	AddEndpoint(ctx context.Context, app model.AppType, providerID, url string) error
	RemoveEndpoint(ctx context.Context, app model.AppType, providerID, url string) error
}
