package config

// Default values applied before any config file, environment variable, or
// flag is consulted. The upload cap and extension whitelist mirror the
// vault service's own limits so violations are caught before the wire.
const (
	defaultServerURL      = "http://127.0.0.1:5000"
	defaultConnectTimeout = "30s"
	defaultMaxUploadSize  = "16 MiB"
	defaultLogLevel       = "info"
	defaultLogFormat      = "text"
)

// defaultAllowedExtensions matches the server-side whitelist.
var defaultAllowedExtensions = []string{"txt", "pdf", "png", "jpg", "jpeg", "gif"}

// defaultConfig returns a Config populated with defaults.
func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			URL:            defaultServerURL,
			ConnectTimeout: defaultConnectTimeout,
		},
		Transfers: TransfersConfig{
			MaxUploadSize:     defaultMaxUploadSize,
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}
