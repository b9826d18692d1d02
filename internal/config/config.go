// Package config loads labdigest settings from environment variables, with
// defaults for everything except the Postgres URL, and validates them on
// startup so a bad deployment fails before touching any data.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Dictionary DictionaryConfig
	Layout     LayoutConfig
	Pipeline   PipelineConfig
	Upload     UploadConfig
	Security   SecurityConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 5m)
	// Digest runs answer only when the whole batch is done.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"5m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is how long to wait for in-flight requests and runs (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 4m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"4m"`
}

// StoreConfig selects and configures the storage backend.
type StoreConfig struct {
	// Backend is sqlite, postgres or memory (default: sqlite)
	Backend string `env:"STORE_BACKEND" default:"sqlite"`

	// SQLitePath is the database file for the sqlite backend
	SQLitePath string `env:"SQLITE_PATH" default:"data/labdigest.db"`

	// DatabaseURL is the PostgreSQL connection string, required for postgres.
	// DATABASE_URL and DB_URL are both accepted.
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of pooled connections (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// DictionaryConfig locates the lookup dictionaries used to enrich digests.
type DictionaryConfig struct {
	EIDPath        string `env:"EID_DICTIONARY_PATH" default:"dictionaries/eid.json"`
	DepartmentPath string `env:"DEPARTMENT_DICTIONARY_PATH" default:"dictionaries/department.json"`
}

// LayoutConfig points at an optional YAML file overriding the built-in
// column, stats and report layouts.
type LayoutConfig struct {
	File string `env:"LAYOUT_FILE"`
}

// PipelineConfig holds batch run settings.
type PipelineConfig struct {
	// RunWait is how long a run waits for another one to finish (default: 30s)
	RunWait time.Duration `env:"PIPELINE_RUN_WAIT" default:"30s"`
}

// UploadConfig holds upload limits.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted upload in bytes (default: 32MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"33554432"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey turns on API-key auth for /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP and X-Forwarded-For headers are believed
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP adds a Content-Security-Policy header (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
