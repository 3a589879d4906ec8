package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestSetupWritesToFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "logs", "claw-deck.log")
	logger, closer, err := Setup(Options{File: path, Level: "debug"})
	require.NoError(t, err)

	Component(logger, "gateway").Info("connected", "attempt", 2)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "component=gateway")
	assert.Contains(t, string(data), "attempt=2")
}

func TestSetupRequiresFile(t *testing.T) {
	_, _, err := Setup(Options{})
	assert.Error(t, err)
}

func TestSetLevelAppliesToInstalledLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "claw-deck.log")
	logger, closer, err := Setup(Options{File: path, Level: "info"})
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug("hidden")
	SetLevel("debug")
	logger.Debug("shown")
	SetLevel("info")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}
