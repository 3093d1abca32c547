// Package paths centralizes the data-directory layout of the certforged
// daemon. Everything the daemon reads or writes lives under one data
// directory: config, roster, templates, generated certificates, log, and
// PID file.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// ConfigFile is the TOML configuration file name.
	ConfigFile = "config.toml"
	// PIDFile is the single-instance lock file name.
	PIDFile = "certforged.pid"
	// LogFile is the rotating daemon log file name.
	LogFile = "certforged.log"
	// RosterCacheFile mirrors the last successful remote roster fetch.
	RosterCacheFile = "roster-cache.csv"
)

// DataDir resolves the daemon's data directory. Precedence: the explicit
// flag value, the CERTFORGE_DATA environment variable, the current
// directory. The result is absolute and is created if missing.
func DataDir(flagValue string) (string, error) {
	dir := flagValue
	if dir == "" {
		dir = os.Getenv("CERTFORGE_DATA")
	}
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve data dir %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create data dir %s: %w", abs, err)
	}
	return abs, nil
}

// Resolve joins a configured path to the data directory unless it is
// already absolute. Empty input stays empty.
func Resolve(dataDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dataDir, path)
}
