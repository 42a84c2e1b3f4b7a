// ABOUTME: Tests for command routing and logger setup
// ABOUTME: Covers unknown commands and level parsing
package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/mirrorsync/config"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		logger := setupLogger(config.LoggingConfig{Level: tt.level, Format: "json"})
		assert.True(t, logger.Enabled(context.Background(), tt.want), "level %q", tt.level)
		if tt.want > slog.LevelDebug {
			assert.False(t, logger.Enabled(context.Background(), tt.want-1), "level %q", tt.level)
		}
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "mirrorsync.db")

	err := run(cfg, "crm", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestRun_Status(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "nested", "mirrorsync.db")

	require.NoError(t, run(cfg, "status", nil))
	assert.FileExists(t, cfg.Database.Path)
}
