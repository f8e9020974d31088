// Package application contains use-case services wiring the domain ports
// together.
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/provswitch/provswitch/internal/domain/model"
	"github.com/provswitch/provswitch/internal/domain/port/driven"
)

// SwitchService switches the current provider for an app and projects its
// settings into the app's live configuration file. The database is the
// source of truth: a failed projection is logged as a warning and never
// rolls back the switch.
type SwitchService struct {
	providers driven.ProviderStore
	live      driven.LiveConfigWriter
}

// NewSwitchService creates a SwitchService.
func NewSwitchService(providers driven.ProviderStore, live driven.LiveConfigWriter) *SwitchService {
	return &SwitchService{providers: providers, live: live}
}

// Use makes id the current provider for app. Returns
// driven.ErrProviderNotFound when no such provider exists.
func (s *SwitchService) Use(ctx context.Context, app model.AppType, id string) error {
	provider, err := s.providers.Get(ctx, app, id)
	if err != nil {
		return err
	}
	if provider == nil {
		return fmt.Errorf("%q in %s: %w", id, app, driven.ErrProviderNotFound)
	}

	if err := s.providers.SetCurrent(ctx, app, id); err != nil {
		return err
	}

	if err := s.live.Write(ctx, app, provider.SettingsConfig); err != nil {
		slog.Warn("failed to write live config after switch",
			"app", app.String(), "provider", id, "error", err)
	}
	return nil
}
