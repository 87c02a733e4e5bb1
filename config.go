package sprada

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// Config is the full client configuration. Start from [DefaultConfig] or
// [LoadConfigFromEnv] and adjust.
type Config struct {
	API     APIConfig
	Session SessionConfig
	Audit   AuditConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig describes the REST backend.
type APIConfig struct {
	// BaseURL is joined with every relative request path.
	BaseURL string
	// Timeout is the default per-request deadline; 0 disables it.
	Timeout time.Duration
	// RefreshTimeout bounds the shared refresh call.
	RefreshTimeout time.Duration
	UserAgent      string
	LoginPath      string
	RefreshPath    string
	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes int64
}

/*
====================================
SESSION CONFIG
====================================
*/

// StorageKind selects the session storage backend built by the Builder when none is
// injected.
type StorageKind string

const (
	StorageMemory StorageKind = "memory"
	StorageFile   StorageKind = "file"
	StorageRedis  StorageKind = "redis"
)

// SessionConfig controls session persistence and proactive refresh.
type SessionConfig struct {
	Storage     StorageKind
	FilePath    string
	RedisURL    string
	RedisPrefix string
	// RedisTTL expires persisted keys; 0 keeps them until logout.
	RedisTTL time.Duration
	// RefreshLeeway refreshes JWT access tokens that expire within the window before
	// sending a request. 0 disables proactive refresh.
	RefreshLeeway time.Duration
	// RestoreTimeout bounds loading the persisted session during Build.
	RestoreTimeout time.Duration
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// LoggingConfig is used when the Builder creates its own logger.
type LoggingConfig struct {
	Level  string
	Format string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the defaults documented in the package overview. BaseURL is
// left empty and must be set.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Timeout:          30 * time.Second,
			RefreshTimeout:   10 * time.Second,
			UserAgent:        "sprada-client/1",
			LoginPath:        "/auth/login",
			RefreshPath:      "/auth/refresh",
			MaxResponseBytes: 10 << 20,
		},
		Session: SessionConfig{
			Storage:        StorageMemory,
			RedisPrefix:    "sprada:session",
			RestoreTimeout: 2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks cfg. Every error wraps [ErrInvalidConfig].
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return invalidConfig("API BaseURL is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalidConfig("API BaseURL must be an absolute http(s) URL")
	}
	if c.API.Timeout < 0 {
		return invalidConfig("API Timeout must be >= 0")
	}
	if c.API.RefreshTimeout <= 0 {
		return invalidConfig("API RefreshTimeout must be > 0")
	}
	if c.API.LoginPath == "" || c.API.RefreshPath == "" {
		return invalidConfig("API LoginPath and RefreshPath are required")
	}
	if c.API.MaxResponseBytes <= 0 {
		return invalidConfig("API MaxResponseBytes must be > 0")
	}

	switch c.Session.Storage {
	case StorageMemory:
	case StorageFile:
		if c.Session.FilePath == "" {
			return invalidConfig("Session FilePath is required for file storage")
		}
	case StorageRedis:
	default:
		return invalidConfig(fmt.Sprintf("Session Storage %q is not one of memory, file, redis", c.Session.Storage))
	}
	if c.Session.RefreshLeeway < 0 {
		return invalidConfig("Session RefreshLeeway must be >= 0")
	}
	if c.Session.RedisTTL < 0 {
		return invalidConfig("Session RedisTTL must be >= 0")
	}
	if c.Session.RestoreTimeout <= 0 {
		return invalidConfig("Session RestoreTimeout must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalidConfig("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return invalidConfig("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return invalidConfig(err.Error())
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return invalidConfig("Logging Format must be json or text")
	}
	return nil
}

func invalidConfig(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}

// logAttrs is a compact description of the config for startup logs. Secrets are never
// part of Config, so nothing is redacted.
func (c Config) logAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("base_url", c.API.BaseURL),
		slog.Duration("timeout", c.API.Timeout),
		slog.String("storage", string(c.Session.Storage)),
		slog.Bool("audit", c.Audit.Enabled),
		slog.Bool("metrics", c.Metrics.Enabled),
	}
}
