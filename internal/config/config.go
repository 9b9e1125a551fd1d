// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for filedrop. Settings layer as
// defaults -> config file -> environment (FILEDROP_*) -> CLI flags.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Transfers TransfersConfig `toml:"transfers"`
	Logging   LoggingConfig   `toml:"logging"`
}

// ServerConfig identifies the vault service endpoint and HTTP behavior.
type ServerConfig struct {
	URL            string `toml:"url"`
	ConnectTimeout string `toml:"connect_timeout"`
}

// TransfersConfig controls upload validation and download placement.
// max_upload_size takes human-readable sizes ("16 MiB"); an empty
// allowed_extensions list allows every extension.
type TransfersConfig struct {
	MaxUploadSize     string   `toml:"max_upload_size"`
	AllowedExtensions []string `toml:"allowed_extensions"`
	DownloadDir       string   `toml:"download_dir"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Resolved is the effective configuration after all layers are applied and
// string fields are parsed into usable types.
type Resolved struct {
	ServerURL         string
	ConnectTimeout    time.Duration
	MaxUploadSize     int64
	AllowedExtensions []string
	DownloadDir       string
	LogLevel          string
	LogFormat         string
	SessionPath       string
	HistoryDBPath     string
}
