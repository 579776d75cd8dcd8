// Package config provides centralized configuration management for the editor.
// Settings come from environment variables, then an optional TOML file named
// by CONFIG_FILE, then struct-tag defaults. Everything is validated on startup
// to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig    `toml:"server"`
	Session  SessionConfig   `toml:"session"`
	Upload   UploadConfig    `toml:"upload"`
	Rate     RateLimitConfig `toml:"rate"`
	Security SecurityConfig  `toml:"security"`
	Logging  LoggingConfig   `toml:"logging"`
	Audit    AuditConfig     `toml:"audit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" toml:"host" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" toml:"port" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" toml:"read_timeout" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" toml:"write_timeout" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" toml:"idle_timeout" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" toml:"shutdown_timeout" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" toml:"request_timeout" default:"60s"`
}

// SessionConfig holds editor session settings.
type SessionConfig struct {
	// CookieName names the browser session cookie (default: cpl_session)
	CookieName string `env:"SESSION_COOKIE_NAME" toml:"cookie_name" default:"cpl_session"`

	// CookieSecure sets the Secure attribute on the session cookie (default: false)
	CookieSecure bool `env:"SESSION_COOKIE_SECURE" toml:"cookie_secure" default:"false"`

	// IdleTimeout evicts sessions untouched for this long (default: 30m)
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" toml:"idle_timeout" default:"30m"`

	// JanitorInterval is how often idle sessions are swept (default: 1m)
	JanitorInterval time.Duration `env:"SESSION_JANITOR_INTERVAL" toml:"janitor_interval" default:"1m"`

	// MaxSessions caps concurrently open sessions (default: 1000)
	MaxSessions int `env:"SESSION_MAX" toml:"max_sessions" default:"1000"`

	// PageSize is the page size of a fresh session (default: 50)
	PageSize int `env:"SESSION_PAGE_SIZE" toml:"page_size" default:"50"`

	// ViewCacheSize is the number of memoized projections per session (default: 8)
	ViewCacheSize int `env:"SESSION_VIEW_CACHE_SIZE" toml:"view_cache_size" default:"8"`
}

// UploadConfig holds commentary file upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 16MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" toml:"max_file_size" default:"16777216"`

	// MaxConcurrent is the maximum number of parallel decodes (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" toml:"max_concurrent" default:"4"`

	// MaxWaitTime is how long to wait for a decode slot (default: 10s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" toml:"max_wait_time" default:"10s"`

	// Timeout is the maximum duration for a single decode (default: 30s)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" toml:"timeout" default:"30s"`

	// DefaultPreset is the game version preselected on the upload form (default: 2021)
	DefaultPreset string `env:"UPLOAD_DEFAULT_PRESET" toml:"default_preset" default:"2021"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" toml:"enabled" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" toml:"requests_per_minute" default:"300"`

	// UploadLimit is requests per minute for the load endpoint (default: 20)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" toml:"upload_limit" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES" toml:"trusted_proxies"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" toml:"enable_csp" default:"true"`

	// RequireAPIKey protects the /api routes with an X-API-Key header (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" toml:"require_api_key" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS" toml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" toml:"level" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" toml:"format" default:"text"`
}

// AuditConfig holds audit trail storage settings.
type AuditConfig struct {
	// Driver selects the audit store: memory, sqlite or postgres (default: memory)
	Driver string `env:"AUDIT_DRIVER" toml:"driver" default:"memory"`

	// DSN is the sqlite file path or the PostgreSQL connection string.
	// DATABASE_URL is accepted for the postgres driver.
	DSN string `env:"AUDIT_DSN" envAlt:"DATABASE_URL" toml:"dsn"`

	// MemoryCapacity is the number of entries the memory store keeps (default: 10000)
	MemoryCapacity int `env:"AUDIT_MEMORY_CAPACITY" toml:"memory_capacity" default:"10000"`

	// MaxConns is the postgres pool size (default: 4)
	MaxConns int `env:"AUDIT_MAX_CONNS" toml:"max_conns" default:"4"`

	// RetentionDays is how long entries are kept before purging (default: 30)
	RetentionDays int `env:"AUDIT_RETENTION_DAYS" toml:"retention_days" default:"30"`

	// PurgeInterval is how often the purge job runs (default: 1h)
	PurgeInterval time.Duration `env:"AUDIT_PURGE_INTERVAL" toml:"purge_interval" default:"1h"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Retention returns RetentionDays as a duration.
func (c *AuditConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
