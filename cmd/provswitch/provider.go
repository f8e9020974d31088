package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/provswitch/provswitch/internal/adapter/driven/liveconfig"
	"github.com/provswitch/provswitch/internal/adapter/driven/sqlite"
	"github.com/provswitch/provswitch/internal/application"
	"github.com/provswitch/provswitch/internal/domain/model"
	"github.com/provswitch/provswitch/internal/domain/port/driven"
)

func newProviderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Provider profile management",
	}
	cmd.PersistentFlags().String("app", "", "app type: claude, codex, or gemini")
	cmd.AddCommand(
		newProviderListCmd(),
		newProviderShowCmd(),
		newProviderAddCmd(),
		newProviderRemoveCmd(),
		newProviderUseCmd(),
		newProviderEndpointCmd(),
	)
	return cmd
}

func newProviderListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, _, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			app, err := resolveApp(ctx, db, mustAppFlag(cmd))
			if err != nil {
				return err
			}

			repo := sqlite.NewProviderRepo(db)
			providers, err := repo.List(ctx, app)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(providers)
			}

			current := color.New(color.FgGreen, color.Bold)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tCURRENT")
			for _, p := range providers {
				marker := ""
				if p.IsCurrent {
					marker = current.Sprint("✓")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, strOrDash(p.Category), marker)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newProviderShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one provider as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, _, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			app, err := resolveApp(ctx, db, mustAppFlag(cmd))
			if err != nil {
				return err
			}

			provider, err := sqlite.NewProviderRepo(db).Get(ctx, app, args[0])
			if err != nil {
				return err
			}
			if provider == nil {
				return fmt.Errorf("%q in %s: %w", args[0], app, driven.ErrProviderNotFound)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(provider)
		},
	}
}

func newProviderAddCmd() *cobra.Command {
	var (
		id, settingsArg, websiteURL, category, notes string
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a provider profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, _, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			app, err := resolveApp(ctx, db, mustAppFlag(cmd))
			if err != nil {
				return err
			}

			settings, err := readSettingsArg(settingsArg)
			if err != nil {
				return err
			}

			if id == "" {
				id = uuid.NewString()
			}
			now := time.Now().UnixMilli()

			p := model.Provider{
				ID:             id,
				Name:           args[0],
				SettingsConfig: settings,
				CreatedAt:      &now,
			}
			if websiteURL != "" {
				p.WebsiteURL = &websiteURL
			}
			if category != "" {
				p.Category = &category
			}
			if notes != "" {
				p.Notes = &notes
			}

			if err := sqlite.NewProviderRepo(db).Save(ctx, app, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added provider %s (%s) to %s\n", p.Name, p.ID, app)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "provider id (generated when omitted)")
	cmd.Flags().StringVar(&settingsArg, "settings", "{}", "settings JSON document, or @file to read from a file")
	cmd.Flags().StringVar(&websiteURL, "url", "", "provider website URL")
	cmd.Flags().StringVar(&category, "category", "", "display category")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func newProviderRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a provider profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, _, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			app, err := resolveApp(ctx, db, mustAppFlag(cmd))
			if err != nil {
				return err
			}

			repo := sqlite.NewProviderRepo(db)
			provider, err := repo.Get(ctx, app, args[0])
			if err != nil {
				return err
			}
			if provider == nil {
				return fmt.Errorf("%q in %s: %w", args[0], app, driven.ErrProviderNotFound)
			}

			if err := repo.Delete(ctx, app, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed provider %s from %s\n", args[0], app)
			return nil
		},
	}
}

func newProviderUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Make a provider current and write its live config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, _, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			app, err := resolveApp(ctx, db, mustAppFlag(cmd))
			if err != nil {
				return err
			}

			svc := application.NewSwitchService(sqlite.NewProviderRepo(db), liveconfig.NewWriter())
			if err := svc.Use(ctx, app, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Now using %s for %s\n", args[0], app)
			return nil
		},
	}
}

func newProviderEndpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Manage custom endpoints of a provider",
	}

	add := &cobra.Command{
		Use:   "add <provider-id> <url>",
		Short: "Add a custom endpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, _, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			app, err := resolveApp(ctx, db, mustAppFlag(cmd))
			if err != nil {
				return err
			}
			if err := sqlite.NewProviderRepo(db).AddEndpoint(ctx, app, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added endpoint %s to %s\n", args[1], args[0])
			return nil
		},
	}
	remove := &cobra.Command{
		Use:   "remove <provider-id> <url>",
		Short: "Remove a custom endpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, _, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			app, err := resolveApp(ctx, db, mustAppFlag(cmd))
			if err != nil {
				return err
			}
			if err := sqlite.NewProviderRepo(db).RemoveEndpoint(ctx, app, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed endpoint %s from %s\n", args[1], args[0])
			return nil
		},
	}
	cmd.AddCommand(add, remove)
	return cmd
}

func readSettingsArg(arg string) (json.RawMessage, error) {
	text := arg
	if strings.HasPrefix(arg, "@") {
		data, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("read settings file: %w", err)
		}
		text = string(data)
	}
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("settings is not valid JSON")
	}
	return json.RawMessage(text), nil
}

func strOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func mustAppFlag(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("app")
	return v
}
