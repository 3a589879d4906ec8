package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the data directory when set.
const HomeEnv = "CLAW_DECK_HOME"

// GetDeckDir returns the claw-deck data directory (~/.claw-deck).
func GetDeckDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".claw-deck"), nil
}

// expandPath expands a leading ~/ to the user's home directory.
func expandPath(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
