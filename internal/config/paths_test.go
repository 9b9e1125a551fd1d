package config

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigDir_RespectsXDG(t *testing.T) {
	if runtime.GOOS != platformLinux {
		t.Skip("XDG base directories are Linux-only")
	}

	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	assert.Equal(t, filepath.Join("/custom/config", appName), DefaultConfigDir())
}

func TestDefaultDataDir_RespectsXDG(t *testing.T) {
	if runtime.GOOS != platformLinux {
		t.Skip("XDG base directories are Linux-only")
	}

	t.Setenv("XDG_DATA_HOME", "/custom/data")

	assert.Equal(t, filepath.Join("/custom/data", appName), DefaultDataDir())
}

func TestDefaultConfigDir_FallbackWithoutXDG(t *testing.T) {
	if runtime.GOOS != platformLinux {
		t.Skip("XDG base directories are Linux-only")
	}

	t.Setenv("XDG_CONFIG_HOME", "")

	dir := DefaultConfigDir()
	require.NotEmpty(t, dir)
	assert.True(t, strings.HasSuffix(dir, filepath.Join(".config", appName)), dir)
}

func TestFilePaths_LiveInExpectedDirectories(t *testing.T) {
	configPath := DefaultConfigPath()
	require.NotEmpty(t, configPath)
	assert.Equal(t, configFileName, filepath.Base(configPath))
	assert.Equal(t, DefaultConfigDir(), filepath.Dir(configPath))

	sessionPath := SessionPath()
	require.NotEmpty(t, sessionPath)
	assert.Equal(t, sessionFileName, filepath.Base(sessionPath))
	assert.Equal(t, DefaultDataDir(), filepath.Dir(sessionPath))

	dbPath := HistoryDBPath()
	require.NotEmpty(t, dbPath)
	assert.Equal(t, historyDBName, filepath.Base(dbPath))
	assert.Equal(t, DefaultDataDir(), filepath.Dir(dbPath))
}
