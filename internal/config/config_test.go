package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv(BinaryEnv, "")
	dir := t.TempDir()

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "openclaw", cfg.OpenClaw.Binary)
	assert.Equal(t, 30*time.Second, cfg.OpenClaw.Timeout.Duration)
	assert.Equal(t, 10*time.Second, cfg.Polling.MissionControl.Duration)
	assert.Equal(t, 30*time.Second, cfg.Polling.ChatSessions.Duration)
	assert.Equal(t, "dark", cfg.UI.Theme)
	assert.Equal(t, dir, cfg.Dir)
}

func TestLoadFromParsesSections(t *testing.T) {
	t.Setenv(BinaryEnv, "")
	dir := t.TempDir()
	content := `
[openclaw]
binary = "/opt/openclaw/bin/openclaw"
timeout = "5s"

[web]
listen = "127.0.0.1:9999"
read_only = true

[polling]
mission_control = "2s"

[ui]
theme = "LIGHT"
`
	require.NoError(t, os.WriteFile(Path(dir), []byte(content), 0o600))

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "/opt/openclaw/bin/openclaw", cfg.OpenClaw.Binary)
	assert.Equal(t, 5*time.Second, cfg.OpenClaw.Timeout.Duration)
	assert.Equal(t, "127.0.0.1:9999", cfg.Web.Listen)
	assert.True(t, cfg.Web.ReadOnly)
	assert.Equal(t, 2*time.Second, cfg.Polling.MissionControl.Duration)
	assert.Equal(t, 30*time.Second, cfg.Polling.ChatSessions.Duration, "unset duration keeps default")
	assert.Equal(t, "light", cfg.UI.Theme)
}

func TestLoadFromInvalidEnumsFallBack(t *testing.T) {
	t.Setenv(BinaryEnv, "")
	dir := t.TempDir()
	content := `
[log]
level = "verbose"

[ui]
theme = "neon"
`
	require.NoError(t, os.WriteFile(Path(dir), []byte(content), 0o600))

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "dark", cfg.UI.Theme)
}

func TestLoadFromRejectsMalformedToml(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("[openclaw\nbinary="), 0o600))

	_, err := LoadFrom(dir)
	assert.Error(t, err)
}

func TestBinaryEnvOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("[openclaw]\nbinary = \"from-file\"\n"), 0o600))
	t.Setenv(BinaryEnv, "/usr/local/bin/openclaw-dev")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/openclaw-dev", cfg.OpenClaw.Binary)
}

func TestSavePreservesUnknownSections(t *testing.T) {
	t.Setenv(BinaryEnv, "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("[experimental]\nflag = true\n"), 0o600))

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	cfg.Web.Listen = "127.0.0.1:7000"
	require.NoError(t, cfg.Save())

	data, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "experimental")
	assert.Contains(t, string(data), "127.0.0.1:7000")

	reloaded, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", reloaded.Web.Listen)
	assert.Equal(t, cfg.OpenClaw.Timeout, reloaded.OpenClaw.Timeout)
}

func TestLogFileDefaultsIntoDataDir(t *testing.T) {
	cfg := Default()
	cfg.Dir = "/data"
	assert.Equal(t, filepath.Join("/data", "logs", "claw-deck.log"), cfg.LogFile())
	assert.Equal(t, filepath.Join("/data", "localstore.db"), cfg.StorePath())
}

func TestGetDeckDirHonorsEnv(t *testing.T) {
	t.Setenv(HomeEnv, "/tmp/claw-home")
	dir, err := GetDeckDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/claw-home", dir)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	t.Setenv(BinaryEnv, "")
	dir := t.TempDir()

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(dir, nil, func(cfg *Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(Path(dir), []byte("[ui]\ntheme = \"light\"\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "light", cfg.UI.Theme)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for config reload")
	}
}
