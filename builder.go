package sprada

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/Khatrip009/adminsprada-sub000/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Client]. Configure it once, then call Build.
type Builder struct {
	config     Config
	httpClient *http.Client
	storage    session.Storage
	redis      redis.UniversalClient
	logger     *slog.Logger
	auditSink  AuditSink

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets Config.API.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

// WithHTTPClient sets the transport. A client without a cookie jar gets one, on a
// shallow copy.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithStorage injects the session storage and overrides Config.Session.Storage.
func (b *Builder) WithStorage(s session.Storage) *Builder {
	b.storage = s
	return b
}

// WithRedis supplies the client used for redis storage instead of dialing
// Config.Session.RedisURL. The Client does not close it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the logger. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink. It only receives events when Config.Audit.Enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	if !enabled {
		b.config.Metrics.EnableLatencyHistograms = false
	}
	return b
}

// WithLatencyHistograms toggles the request and refresh latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Client with any persisted
// session restored. A Builder can be built once.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return nil, invalidConfig(err.Error())
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		cfg:     cfg,
		baseURL: base,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
	}

	storage, err := b.buildStorage(c)
	if err != nil {
		return nil, err
	}

	c.http, err = withCookieJar(b.httpClient)
	if err != nil {
		c.closeResources()
		return nil, err
	}

	c.store = session.NewStore(storage, session.RefresherFunc(c.refreshTokens),
		session.WithLogger(logger),
		session.WithEventHook(c.onSessionEvent),
		session.WithRefreshTimeout(cfg.API.RefreshTimeout),
	)
	c.audit = newAuditDispatcher(cfg.Audit, b.auditSink)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Session.RestoreTimeout)
	c.store.Restore(ctx)
	cancel()

	b.built = true
	logger.LogAttrs(context.Background(), slog.LevelInfo, "sprada: client ready",
		append(cfg.logAttrs(), slog.Bool("authenticated", c.store.IsAuthenticated()))...)
	return c, nil
}

func (b *Builder) buildStorage(c *Client) (session.Storage, error) {
	if b.storage != nil {
		return b.storage, nil
	}

	sc := c.cfg.Session
	switch sc.Storage {
	case StorageFile:
		fs, err := session.NewFileStorage(sc.FilePath)
		if err != nil {
			return nil, fmt.Errorf("sprada: file storage: %w", err)
		}
		return fs, nil

	case StorageRedis:
		rdb := b.redis
		if rdb == nil {
			if sc.RedisURL == "" {
				return nil, invalidConfig("Session RedisURL is required for redis storage")
			}
			opts, err := redis.ParseURL(sc.RedisURL)
			if err != nil {
				return nil, invalidConfig(fmt.Sprintf("Session RedisURL: %v", err))
			}
			owned := redis.NewClient(opts)
			c.closers = append(c.closers, owned.Close)
			rdb = owned
		}
		return session.NewRedisStorage(rdb, sc.RedisPrefix, sc.RedisTTL), nil

	default:
		return session.NewMemoryStorage(), nil
	}
}

func withCookieJar(hc *http.Client) (*http.Client, error) {
	if hc != nil && hc.Jar != nil {
		return hc, nil
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("sprada: cookie jar: %w", err)
	}
	if hc == nil {
		return &http.Client{Jar: jar}, nil
	}
	cp := *hc
	cp.Jar = jar
	return &cp, nil
}
