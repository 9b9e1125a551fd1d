package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func clearEnv(t *testing.T) {
	t.Helper()

	for _, v := range []string{envServerURL, envMaxUpload, envLogLevel, envDownloadDir} {
		t.Setenv(v, "")
	}
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	clearEnv(t)

	missing := filepath.Join(t.TempDir(), "nope.toml")

	cfg, err := Load(CLIOverrides{ConfigPath: missing})
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:5000", cfg.ServerURL)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, int64(16*1024*1024), cfg.MaxUploadSize)
	assert.Equal(t, []string{"txt", "pdf", "png", "jpg", "jpeg", "gif"}, cfg.AllowedExtensions)
	assert.Equal(t, ".", cfg.DownloadDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)

	path := writeConfigFile(t, `
[server]
url = "https://vault.example.com/"
connect_timeout = "5s"

[transfers]
max_upload_size = "1 GiB"
allowed_extensions = [".MD", "csv"]
download_dir = "/tmp/downloads"

[logging]
log_level = "debug"
log_format = "json"
`)

	cfg, err := Load(CLIOverrides{ConfigPath: path})
	require.NoError(t, err)

	// Trailing slash is trimmed off the base URL.
	assert.Equal(t, "https://vault.example.com", cfg.ServerURL)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, int64(1024*1024*1024), cfg.MaxUploadSize)
	// Extensions are lowercased and leading dots stripped.
	assert.Equal(t, []string{"md", "csv"}, cfg.AllowedExtensions)
	assert.Equal(t, "/tmp/downloads", cfg.DownloadDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := writeConfigFile(t, `
[server]
url = "http://from-file:5000"

[transfers]
max_upload_size = "1 MB"
`)

	t.Setenv(envServerURL, "http://from-env:8080")
	t.Setenv(envMaxUpload, "2 MB")
	t.Setenv(envLogLevel, "warn")
	t.Setenv(envDownloadDir, "/env/dir")

	cfg, err := Load(CLIOverrides{ConfigPath: path})
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:8080", cfg.ServerURL)
	assert.Equal(t, int64(2*1000*1000), cfg.MaxUploadSize)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "/env/dir", cfg.DownloadDir)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	clearEnv(t)

	t.Setenv(envServerURL, "http://from-env:8080")
	t.Setenv(envDownloadDir, "/env/dir")

	missing := filepath.Join(t.TempDir(), "nope.toml")

	cfg, err := Load(CLIOverrides{
		ConfigPath:  missing,
		ServerURL:   "http://from-flag:9090",
		DownloadDir: "/flag/dir",
	})
	require.NoError(t, err)

	assert.Equal(t, "http://from-flag:9090", cfg.ServerURL)
	assert.Equal(t, "/flag/dir", cfg.DownloadDir)
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)

	path := writeConfigFile(t, `this is not toml = = =`)

	_, err := Load(CLIOverrides{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestLoad_RejectsInvalidServerURL(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"no scheme", "vault.example.com"},
		{"wrong scheme", "ftp://vault.example.com"},
		{"no host", "http://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Server.URL = tt.url

			_, err := resolve(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "server.url")
		})
	}
}

func TestLoad_RejectsInvalidLogLevel(t *testing.T) {
	cfg := defaultConfig()
	cfg.Logging.LogLevel = "trace"

	_, err := resolve(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestLoad_RejectsInvalidLogFormat(t *testing.T) {
	cfg := defaultConfig()
	cfg.Logging.LogFormat = "xml"

	_, err := resolve(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_format")
}

func TestLoad_RejectsInvalidMaxUploadSize(t *testing.T) {
	cfg := defaultConfig()
	cfg.Transfers.MaxUploadSize = "lots"

	_, err := resolve(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_upload_size")
}

func TestLoad_RejectsInvalidConnectTimeout(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.ConnectTimeout = "soon"

	_, err := resolve(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect_timeout")
}

func TestDefaultConfig_PassesValidation(t *testing.T) {
	cfg := defaultConfig()
	assert.NoError(t, validate(cfg))
}
