package config

import (
	"os"
	"path/filepath"
	"runtime"
)

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "supportpilot")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "supportpilot-data"
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support", "supportpilot")
	}
	return filepath.Join(home, ".local", "share", "supportpilot")
}
