package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/provswitch/provswitch/internal/adapter/driven/sqlite"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Database backup and restore",
	}
	cmd.AddCommand(newBackupExportCmd(), newBackupImportCmd(), newBackupSnapshotCmd())
	return cmd
}

func newBackupExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the database to a SQL file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, cfg, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if output == "" {
				output = fmt.Sprintf("provswitch-backup-%s.sql", time.Now().UTC().Format("20060102_150405"))
			}

			engine := sqlite.NewBackupEngine(db, cfg.BackupsDir)
			if err := engine.ExportSQL(ctx, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Database exported to: %s\n", color.GreenString("✓"), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path")
	return cmd
}

func newBackupImportCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import the database from a SQL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !yes {
				fmt.Fprintln(cmd.OutOrStdout(), "Warning: this will overwrite your current database.")
				fmt.Fprintln(cmd.OutOrStdout(), "A backup will be created automatically before import.")
				fmt.Fprint(cmd.OutOrStdout(), "Continue? [y/N]: ")

				reader := bufio.NewReader(cmd.InOrStdin())
				response, _ := reader.ReadString('\n')
				if !strings.EqualFold(strings.TrimSpace(response), "y") {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			}

			db, cfg, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			engine := sqlite.NewBackupEngine(db, cfg.BackupsDir)
			backupID, err := engine.ImportSQL(ctx, args[0])
			if err != nil {
				return err
			}

			if backupID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s Previous database backed up as: %s\n", color.GreenString("✓"), backupID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Database imported from: %s\n", color.GreenString("✓"), args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func newBackupSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Take a physical backup of the database file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, cfg, cleanup, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			engine := sqlite.NewBackupEngine(db, cfg.BackupsDir)
			backupID, err := engine.Snapshot(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Backup created: %s\n", color.GreenString("✓"), backupID)
			return nil
		},
	}
}
