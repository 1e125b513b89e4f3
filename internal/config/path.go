package config

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns where the journal lives when no --data-dir is given.
// RELAY_DATA_DIR wins, then XDG_DATA_HOME, then the host's usual application
// data location, then ~/.relay.
func DefaultDataDir() string {
	if v := os.Getenv("RELAY_DATA_DIR"); v != "" {
		return v
	}
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return "./data"
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "relay")
	}
	candidates := []struct{ probe, dir string }{
		{"/var/lib", "/var/lib/relay"},
		{filepath.Join(homeDir, "Library"), filepath.Join(homeDir, "Library", "Application Support", "Relay")},
		{filepath.Join(homeDir, "AppData"), filepath.Join(homeDir, "AppData", "Local", "Relay")},
	}
	for _, c := range candidates {
		if isDir(c.probe) {
			return c.dir
		}
	}
	return filepath.Join(homeDir, ".relay")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
