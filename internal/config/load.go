package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Empty strings mean "not specified".
type CLIOverrides struct {
	ConfigPath  string // --config flag (empty = use default)
	ServerURL   string // --server flag
	DownloadDir string // --dest flag
}

// Environment variable names, checked after the config file.
const (
	envServerURL   = "FILEDROP_SERVER_URL"
	envMaxUpload   = "FILEDROP_MAX_UPLOAD_SIZE"
	envLogLevel    = "FILEDROP_LOG_LEVEL"
	envDownloadDir = "FILEDROP_DOWNLOAD_DIR"
)

// Load resolves the effective configuration: defaults, then the TOML file
// (missing file is fine — defaults apply), then environment variables,
// then CLI flags. The result is validated before being returned.
func Load(overrides CLIOverrides) (*Resolved, error) {
	cfg := defaultConfig()

	path := overrides.ConfigPath
	if path == "" {
		path = DefaultConfigPath()
	}

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(&cfg)

	if overrides.ServerURL != "" {
		cfg.Server.URL = overrides.ServerURL
	}

	if overrides.DownloadDir != "" {
		cfg.Transfers.DownloadDir = overrides.DownloadDir
	}

	return resolve(cfg)
}

// loadFile merges a TOML config file into cfg. A missing file is not an
// error; a malformed one is.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return nil
}

// applyEnv overlays FILEDROP_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv(envServerURL); v != "" {
		cfg.Server.URL = v
	}

	if v := os.Getenv(envMaxUpload); v != "" {
		cfg.Transfers.MaxUploadSize = v
	}

	if v := os.Getenv(envLogLevel); v != "" {
		cfg.Logging.LogLevel = v
	}

	if v := os.Getenv(envDownloadDir); v != "" {
		cfg.Transfers.DownloadDir = v
	}
}

// resolve parses string fields into usable types and validates the result.
func resolve(cfg Config) (*Resolved, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	maxUpload, err := parseSize(cfg.Transfers.MaxUploadSize)
	if err != nil {
		return nil, fmt.Errorf("config: max_upload_size: %w", err)
	}

	timeout, err := time.ParseDuration(cfg.Server.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("config: connect_timeout: %w", err)
	}

	exts := make([]string, 0, len(cfg.Transfers.AllowedExtensions))
	for _, e := range cfg.Transfers.AllowedExtensions {
		exts = append(exts, strings.ToLower(strings.TrimPrefix(e, ".")))
	}

	downloadDir := cfg.Transfers.DownloadDir
	if downloadDir == "" {
		downloadDir = "."
	}

	return &Resolved{
		ServerURL:         strings.TrimRight(cfg.Server.URL, "/"),
		ConnectTimeout:    timeout,
		MaxUploadSize:     maxUpload,
		AllowedExtensions: exts,
		DownloadDir:       downloadDir,
		LogLevel:          cfg.Logging.LogLevel,
		LogFormat:         cfg.Logging.LogFormat,
		SessionPath:       SessionPath(),
		HistoryDBPath:     HistoryDBPath(),
	}, nil
}

// validate rejects configurations that cannot produce a working client.
func validate(cfg Config) error {
	if cfg.Server.URL == "" {
		return errors.New("config: server.url must not be empty")
	}

	u, err := url.Parse(cfg.Server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: server.url %q is not a valid http(s) URL", cfg.Server.URL)
	}

	switch cfg.Logging.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log_level %q (want debug, info, warn, or error)", cfg.Logging.LogLevel)
	}

	switch cfg.Logging.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: log_format %q (want text or json)", cfg.Logging.LogFormat)
	}

	return nil
}
