// Command provswitch manages AI provider profiles in a local SQLite store
// and switches the live configuration of each supported app between them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/provswitch/provswitch/internal/adapter/driven/sqlite"
	"github.com/provswitch/provswitch/internal/config"
	"github.com/provswitch/provswitch/internal/domain/model"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "provswitch",
		Short:         "Manage AI provider configurations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newProviderCmd())
	root.AddCommand(newBackupCmd())
	root.AddCommand(newDefaultAppCmd())
	return root
}

// openStore loads configuration and opens the live store. The returned
// cleanup must be called before process exit.
func openStore(ctx context.Context) (*sqlite.DB, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := sqlite.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	}
	return db, cfg, cleanup, nil
}

// resolveApp picks the app type from the --app flag, falling back to the
// stored default_app setting, then to claude.
func resolveApp(ctx context.Context, db *sqlite.DB, flagValue string) (model.AppType, error) {
	if flagValue != "" {
		return model.ParseAppType(flagValue)
	}

	stored, err := sqlite.NewSettingsRepo(db).Get(ctx, "default_app")
	if err != nil {
		return "", err
	}
	if stored != "" {
		app, err := model.ParseAppType(stored)
		if err != nil {
			return "", fmt.Errorf("stored default_app is invalid: %w", err)
		}
		return app, nil
	}
	return model.AppClaude, nil
}

func newDefaultAppCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default-app [app]",
		Short: "Show or set the default app type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, _, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			settings := sqlite.NewSettingsRepo(db)
			if len(args) == 0 {
				stored, err := settings.Get(ctx, "default_app")
				if err != nil {
					return err
				}
				if stored == "" {
					stored = model.AppClaude.String()
				}
				fmt.Fprintln(cmd.OutOrStdout(), stored)
				return nil
			}

			app, err := model.ParseAppType(args[0])
			if err != nil {
				return err
			}
			if err := settings.Set(ctx, "default_app", app.String()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default app set to %s\n", app)
			return nil
		},
	}
}
