// Package liveconfig projects provider settings documents into the live
// configuration files read by the external services themselves.
package liveconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"github.com/provswitch/provswitch/internal/config"
	"github.com/provswitch/provswitch/internal/domain/model"
	"github.com/provswitch/provswitch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.LiveConfigWriter = (*Writer)(nil)

// Writer writes each app's live settings file with temp-file-then-rename
// semantics. The target path is resolved per app unless overridden, which
// tests use to write into a scratch directory.
type Writer struct {
	resolvePath func(app model.AppType) (string, error)
}

// NewWriter creates a Writer using the default per-user live config paths.
func NewWriter() *Writer {
	return &Writer{resolvePath: config.LiveConfigPath}
}

// NewWriterWithResolver creates a Writer with a custom path resolver.
func NewWriterWithResolver(resolve func(app model.AppType) (string, error)) *Writer {
	return &Writer{resolvePath: resolve}
}

// Write atomically replaces the app's live settings file with the given
// document, pretty-printed.
func (w *Writer) Write(ctx context.Context, app model.AppType, settings json.RawMessage) error {
	path, err := w.resolvePath(app)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if len(settings) == 0 {
		settings = json.RawMessage("{}")
	}
	if err := json.Indent(&pretty, settings, "", "  "); err != nil {
		return fmt.Errorf("format settings for %s: %w", app, err)
	}
	pretty.WriteByte('\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create live config dir for %s: %w", app, err)
	}
	if err := atomic.WriteFile(path, &pretty); err != nil {
		return fmt.Errorf("write live config for %s: %w", app, err)
	}
	return nil
}
