package sprada

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString returns the trimmed value of key, or def when unset or blank.
func EnvString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return def
}

// EnvBool parses key with strconv.ParseBool, falling back to def.
func EnvBool(key string, def bool) bool {
	v := EnvString(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// EnvInt parses key as a base-10 int, falling back to def.
func EnvInt(key string, def int) int {
	v := EnvString(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// EnvDuration parses key with time.ParseDuration, falling back to def.
func EnvDuration(key string, def time.Duration) time.Duration {
	v := EnvString(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// LoadConfigFromEnv overlays SPRADA_* environment variables on [DefaultConfig] and
// validates the result.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.API.BaseURL = EnvString("SPRADA_API_BASE_URL", cfg.API.BaseURL)
	cfg.API.Timeout = EnvDuration("SPRADA_API_TIMEOUT", cfg.API.Timeout)
	cfg.API.RefreshTimeout = EnvDuration("SPRADA_API_REFRESH_TIMEOUT", cfg.API.RefreshTimeout)
	cfg.API.UserAgent = EnvString("SPRADA_API_USER_AGENT", cfg.API.UserAgent)

	cfg.Session.Storage = StorageKind(strings.ToLower(EnvString("SPRADA_SESSION_STORAGE", string(cfg.Session.Storage))))
	cfg.Session.FilePath = EnvString("SPRADA_SESSION_FILE", cfg.Session.FilePath)
	cfg.Session.RedisURL = EnvString("SPRADA_SESSION_REDIS_URL", cfg.Session.RedisURL)
	cfg.Session.RedisPrefix = EnvString("SPRADA_SESSION_REDIS_PREFIX", cfg.Session.RedisPrefix)
	cfg.Session.RefreshLeeway = EnvDuration("SPRADA_SESSION_REFRESH_LEEWAY", cfg.Session.RefreshLeeway)

	cfg.Audit.Enabled = EnvBool("SPRADA_AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Audit.BufferSize = EnvInt("SPRADA_AUDIT_BUFFER", cfg.Audit.BufferSize)

	cfg.Metrics.Enabled = EnvBool("SPRADA_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.EnableLatencyHistograms = cfg.Metrics.Enabled && cfg.Metrics.EnableLatencyHistograms

	cfg.Logging.Level = EnvString("SPRADA_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = EnvString("SPRADA_LOG_FORMAT", cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
