package driven

import (
	"context"
	"encoding/json"

	"github.com/provswitch/provswitch/internal/domain/model"
)

// LiveConfigWriter projects a provider's settings document into the external
// service's live configuration file. The write must be atomic at the file
// level. The database remains the source of truth: a failed projection is
// reported to the caller but never rolls back the store.
type LiveConfigWriter interface {
	Write(ctx context.Context, app model.AppType, settings json.RawMessage) error
}
