// Package config loads application configuration from environment variables
// and resolves per-user filesystem paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/provswitch/provswitch/internal/domain/model"
)

// Config holds resolved paths for the store and its backup artifacts.
type Config struct {
	ConfigDir  string
	DBPath     string
	BackupsDir string
}

// Load resolves configuration from environment variables with per-user
// defaults. PROVSWITCH_CONFIG_DIR overrides the base directory (default
// os.UserConfigDir()/provswitch); PROVSWITCH_DB_PATH overrides the database
// file location (default <configdir>/provswitch.db). The backups directory
// always lives next to the database file.
func Load() (*Config, error) {
	configDir := os.Getenv("PROVSWITCH_CONFIG_DIR")
	if configDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve user config dir: %w", err)
		}
		configDir = filepath.Join(base, "provswitch")
	}

	dbPath := os.Getenv("PROVSWITCH_DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(configDir, "provswitch.db")
	}

	return &Config{
		ConfigDir:  configDir,
		DBPath:     dbPath,
		BackupsDir: filepath.Join(filepath.Dir(dbPath), "backups"),
	}, nil
}

// LiveConfigPath returns the live settings file for an app, relative to the
// user's home directory (e.g. ~/.claude/settings.json). Each external
// service reads this file directly; provswitch only ever rewrites it whole.
func LiveConfigPath(app model.AppType) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	switch app {
	case model.AppClaude:
		return filepath.Join(home, ".claude", "settings.json"), nil
	case model.AppCodex:
		return filepath.Join(home, ".codex", "config.json"), nil
	case model.AppGemini:
		return filepath.Join(home, ".gemini", "settings.json"), nil
	default:
		return "", fmt.Errorf("unknown app type %q", app)
	}
}
