package driven

import "context"

// SettingsStore defines the driven port for the free-form key/value settings
// table. Get returns ("", nil) when the key is absent.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) (map[string]string, error)
}
