package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// BinaryEnv overrides the openclaw binary path from the config file.
const BinaryEnv = "OPENCLAW_BIN"

const configFile = "config.toml"

// Duration is a time.Duration that reads and writes as a TOML string ("10s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// OpenClawConfig is the [openclaw] section.
type OpenClawConfig struct {
	Binary  string   `toml:"binary"`
	Timeout Duration `toml:"timeout"`
}

// WebConfig is the [web] section.
type WebConfig struct {
	Listen   string `toml:"listen"`
	Token    string `toml:"token"`
	ReadOnly bool   `toml:"read_only"`
}

// PollingConfig is the [polling] section.
type PollingConfig struct {
	MissionControl Duration `toml:"mission_control"`
	ChatSessions   Duration `toml:"chat_sessions"`
}

// LogConfig is the [log] section.
type LogConfig struct {
	Level string `toml:"level"` // "debug", "info", "warn", "error"
	File  string `toml:"file"`
}

// UIConfig is the [ui] section.
type UIConfig struct {
	Theme string `toml:"theme"` // "dark", "light", or "auto"
}

// Config is the full config.toml structure.
type Config struct {
	OpenClaw OpenClawConfig `toml:"openclaw"`
	Web      WebConfig      `toml:"web"`
	Polling  PollingConfig  `toml:"polling"`
	Log      LogConfig      `toml:"log"`
	UI       UIConfig       `toml:"ui"`

	// Dir is the data directory the config was loaded from (not persisted).
	Dir string `toml:"-"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		OpenClaw: OpenClawConfig{
			Binary:  "openclaw",
			Timeout: Duration{30 * time.Second},
		},
		Web: WebConfig{
			Listen: "127.0.0.1:8421",
		},
		Polling: PollingConfig{
			MissionControl: Duration{10 * time.Second},
			ChatSessions:   Duration{30 * time.Second},
		},
		Log: LogConfig{
			Level: "info",
		},
		UI: UIConfig{
			Theme: "dark",
		},
	}
}

// Path returns the config.toml path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, configFile)
}

// Load reads config.toml from the data directory, applying defaults and the
// OPENCLAW_BIN override. A missing file is not an error.
func Load() (*Config, error) {
	dir, err := GetDeckDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads config.toml from dir.
func LoadFrom(dir string) (*Config, error) {
	cfg := Default()
	cfg.Dir = dir

	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	cfg.Dir = dir
	cfg.normalize()
	cfg.applyEnv()
	return cfg, nil
}

// normalize fills empty values with defaults and rejects unknown enum values.
func (c *Config) normalize() {
	def := Default()

	if strings.TrimSpace(c.OpenClaw.Binary) == "" {
		c.OpenClaw.Binary = def.OpenClaw.Binary
	}
	c.OpenClaw.Binary = expandPath(c.OpenClaw.Binary)
	if c.OpenClaw.Timeout.Duration <= 0 {
		c.OpenClaw.Timeout = def.OpenClaw.Timeout
	}
	if c.Web.Listen == "" {
		c.Web.Listen = def.Web.Listen
	}
	if c.Polling.MissionControl.Duration <= 0 {
		c.Polling.MissionControl = def.Polling.MissionControl
	}
	if c.Polling.ChatSessions.Duration <= 0 {
		c.Polling.ChatSessions = def.Polling.ChatSessions
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		c.Log.Level = def.Log.Level
	}
	c.Log.File = expandPath(c.Log.File)

	c.UI.Theme = strings.ToLower(strings.TrimSpace(c.UI.Theme))
	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		c.UI.Theme = def.UI.Theme
	}
}

func (c *Config) applyEnv() {
	if bin := os.Getenv(BinaryEnv); bin != "" {
		c.OpenClaw.Binary = bin
	}
}

// LogFile returns the configured log file, defaulting into the data directory.
func (c *Config) LogFile() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(c.Dir, "logs", "claw-deck.log")
}

// StorePath returns the local storage database path.
func (c *Config) StorePath() string {
	return filepath.Join(c.Dir, "localstore.db")
}

// Save writes the config back to config.toml, preserving sections this
// version does not know about.
func (c *Config) Save() error {
	if c.Dir == "" {
		return fmt.Errorf("config directory is not set")
	}
	path := Path(c.Dir)

	existingData, _ := os.ReadFile(path)
	var existing map[string]interface{}
	if len(existingData) > 0 {
		if err := toml.Unmarshal(existingData, &existing); err != nil {
			existing = make(map[string]interface{})
		}
	} else {
		existing = make(map[string]interface{})
	}

	existing["openclaw"] = map[string]interface{}{
		"binary":  c.OpenClaw.Binary,
		"timeout": c.OpenClaw.Timeout.String(),
	}
	existing["web"] = map[string]interface{}{
		"listen":    c.Web.Listen,
		"token":     c.Web.Token,
		"read_only": c.Web.ReadOnly,
	}
	existing["polling"] = map[string]interface{}{
		"mission_control": c.Polling.MissionControl.String(),
		"chat_sessions":   c.Polling.ChatSessions.String(),
	}
	existing["log"] = map[string]interface{}{
		"level": c.Log.Level,
		"file":  c.Log.File,
	}
	existing["ui"] = map[string]interface{}{
		"theme": c.UI.Theme,
	}

	if err := os.MkdirAll(c.Dir, 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	var buf bytes.Buffer
	if len(existingData) == 0 {
		buf.WriteString("# claw-deck configuration\n\n")
	}
	if err := toml.NewEncoder(&buf).Encode(existing); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename config file: %w", err)
	}
	return nil
}
