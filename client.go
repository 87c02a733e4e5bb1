package sprada

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Khatrip009/adminsprada-sub000/apierr"
	"github.com/Khatrip009/adminsprada-sub000/refresh"
	"github.com/Khatrip009/adminsprada-sub000/session"
)

// Client issues authenticated requests and owns the session. Create it with [Builder].
type Client struct {
	cfg     Config
	baseURL *url.URL
	http    *http.Client
	store   *session.Store
	logger  *slog.Logger
	metrics *Metrics
	audit   *auditDispatcher
	closers []func() error
}

/*
====================================
SESSION SURFACE
====================================
*/

// Session returns the underlying store.
func (c *Client) Session() *session.Store {
	return c.store
}

// Subscribe registers fn for every session change. See [session.Store.Subscribe].
func (c *Client) Subscribe(fn Listener) (unsubscribe func()) {
	return c.store.Subscribe(fn)
}

// User returns a copy of the cached user, nil when logged out.
func (c *Client) User() *User {
	return c.store.User()
}

// IsAuthenticated reports whether an access token is held.
func (c *Client) IsAuthenticated() bool {
	return c.store.IsAuthenticated()
}

// AccessToken returns the current access token.
func (c *Client) AccessToken() string {
	return c.store.AccessToken()
}

// LoginWithTokens stores tokens obtained elsewhere.
func (c *Client) LoginWithTokens(ctx context.Context, creds Credentials) {
	c.store.Login(ctx, creds)
}

// Logout clears the session. It never calls the API.
func (c *Client) Logout(ctx context.Context) {
	c.store.Logout(ctx)
}

// SetUser replaces the cached user.
func (c *Client) SetUser(ctx context.Context, user *User) {
	c.store.SetUser(ctx, user)
}

// Refresh forces a coalesced refresh. On failure the session is already cleared.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.store.Refresh(ctx)
}

// Login exchanges email and password for a session. The login call is never retried
// and a failed login leaves the current session untouched.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	if c == nil {
		return nil, ErrNilClient
	}

	tokens, err := c.postAuth(ctx, c.cfg.API.LoginPath, refresh.LoginRequest{Email: email, Password: password})
	var user *User
	if err == nil && tokens.HasUser() {
		user, err = session.ParseUser(tokens.User)
	}
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.emitAudit(ctx, AuditEvent{
			EventType: AuditLoginFailure,
			Path:      c.cfg.API.LoginPath,
			Status:    statusOf(err),
			Error:     err.Error(),
			Metadata:  map[string]string{"email": email},
		})
		c.logger.InfoContext(ctx, "sprada: login failed", "email", email, "error", err)
		return nil, err
	}

	c.store.Login(ctx, Credentials{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         user,
	})
	return user.Clone(), nil
}

// refreshTokens is the store's Refresher: it posts the refresh token and normalizes
// the reply.
func (c *Client) refreshTokens(ctx context.Context, refreshToken string) (refresh.Tokens, error) {
	return c.postAuth(ctx, c.cfg.API.RefreshPath, refresh.Request{RefreshToken: refreshToken})
}

// postAuth sends an unauthenticated JSON POST to an auth endpoint.
func (c *Client) postAuth(ctx context.Context, path string, body any) (refresh.Tokens, error) {
	target, err := c.resolve(path, nil)
	if err != nil {
		return refresh.Tokens{}, err
	}
	payload, contentType, err := encodeBody(body)
	if err != nil {
		return refresh.Tokens{}, err
	}

	resp, err := c.send(ctx, outgoing{
		method:      http.MethodPost,
		url:         target,
		body:        payload,
		contentType: contentType,
		requestID:   requestIDFor(ctx),
	}, "")
	if err != nil {
		return refresh.Tokens{}, transportFailure(ctx, resp, err)
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return refresh.Tokens{}, apierr.FromStatus(resp.Status, errorBody(resp))
	}

	tokens, err := refresh.Normalize(resp.Body)
	if err != nil {
		e := apierr.New(apierr.KindValidationError, resp.Status, err.Error(), errorBody(resp))
		e.Err = err
		return refresh.Tokens{}, e
	}
	return tokens, nil
}

/*
====================================
OBSERVABILITY
====================================
*/

// MetricsSnapshot returns the current counters and histograms.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped reports events dropped because the audit buffer was full.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close flushes the audit dispatcher and releases connections opened by Build. The
// session itself is kept.
func (c *Client) Close() error {
	if c == nil {
		return ErrNilClient
	}
	c.audit.Close()
	return c.closeResources()
}

func (c *Client) closeResources() error {
	var errs []error
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	c.closers = nil
	return errors.Join(errs...)
}

// onSessionEvent turns store lifecycle events into metrics and audit events.
func (c *Client) onSessionEvent(e session.Event) {
	ctx := context.Background()
	switch e.Type {
	case session.EventLogin:
		c.metrics.Inc(MetricLoginSuccess)
		c.emitAudit(ctx, AuditEvent{EventType: AuditLoginSuccess, UserID: e.UserID, Success: true})
	case session.EventLogout:
		c.metrics.Inc(MetricLogout)
		c.emitAudit(ctx, AuditEvent{EventType: AuditLogout, UserID: e.UserID, Success: true})
	case session.EventRefreshRequested:
		c.metrics.Inc(MetricRefreshRequested)
	case session.EventRefreshStarted:
		c.metrics.Inc(MetricRefreshStarted)
	case session.EventRefreshed:
		c.metrics.Inc(MetricRefreshSuccess)
		c.metrics.Observe(MetricRefreshLatency, e.Duration)
		c.emitAudit(ctx, AuditEvent{EventType: AuditRefreshSuccess, UserID: e.UserID, Success: true})
	case session.EventRefreshFailed:
		c.metrics.Inc(MetricRefreshFailure)
		if e.Duration > 0 {
			c.metrics.Observe(MetricRefreshLatency, e.Duration)
		}
		c.emitAudit(ctx, AuditEvent{EventType: AuditRefreshFailure, Status: statusOf(e.Err), Error: errString(e.Err)})
		c.logger.Info("sprada: refresh failed", "error", e.Err, "duration", e.Duration)
	case session.EventStorageFailed:
		c.metrics.Inc(MetricStorageFailure)
	}
}

func (c *Client) emitAudit(ctx context.Context, event AuditEvent) {
	if c.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	c.audit.Emit(ctx, event)
}

func statusOf(err error) int {
	var re *apierr.RequestError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
