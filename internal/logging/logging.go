// Package logging sets up the rotating file logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// level is shared by every handler Setup installs so SetLevel can change it
// at runtime (config reload).
var level = new(slog.LevelVar)

// Options controls where and how much is logged.
type Options struct {
	File   string
	Level  string
	Stderr bool // also mirror to stderr (CLI commands, not the TUI)
}

// Setup installs a slog text handler writing to a rotating log file and makes
// it the default logger. The standard log package is redirected to the same
// file so stray log.Printf calls cannot corrupt the terminal UI.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	if opts.File == "" {
		return nil, nil, fmt.Errorf("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
		Compress:   true,
	}

	var out io.Writer = rotator
	if opts.Stderr {
		out = io.MultiWriter(rotator, os.Stderr)
	}

	level.Set(ParseLevel(opts.Level))
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	log.SetOutput(rotator)

	return logger, rotator, nil
}

// SetLevel changes the level of the logger installed by Setup.
func SetLevel(name string) {
	level.Set(ParseLevel(name))
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns a child logger tagged with the component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}

// Discard returns a logger that drops everything; used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
