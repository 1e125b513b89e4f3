package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultDataDirOverrides(t *testing.T) {
	t.Setenv("RELAY_DATA_DIR", "")
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	assert.Equal(t, "/custom/data/relay", DefaultDataDir())

	t.Setenv("RELAY_DATA_DIR", "/srv/relay")
	assert.Equal(t, "/srv/relay", DefaultDataDir())
}

func TestDefaultDataDirNoHome(t *testing.T) {
	t.Setenv("RELAY_DATA_DIR", "")
	t.Setenv("HOME", "")
	assert.Equal(t, "./data", DefaultDataDir())
}

func TestDefaultDataDirShape(t *testing.T) {
	t.Setenv("RELAY_DATA_DIR", "")
	t.Setenv("XDG_DATA_HOME", "")
	result := DefaultDataDir()
	assert.True(t, filepath.IsAbs(result) || strings.HasPrefix(result, "./"), "expected absolute path or ./ prefix, got %s", result)
	base := strings.ToLower(filepath.Base(result))
	assert.True(t, base == "relay" || base == ".relay" || result == "./data", "unexpected data dir %s", result)
	assert.Equal(t, result, DefaultDataDir(), "results must be stable")
}

func TestIsDir(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"existing directory", ".", true},
		{"non-existent path", "/non/existent/path/that/does/not/exist", false},
		{"file instead of directory", os.Args[0], false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isDir(tt.path))
		})
	}
}
