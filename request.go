package sprada

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Khatrip009/adminsprada-sub000/apierr"
	"github.com/Khatrip009/adminsprada-sub000/internal/flows"
	"github.com/Khatrip009/adminsprada-sub000/jwt"
)

// RequestOption adjusts a single call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	timeout time.Duration
	header  http.Header
	query   url.Values
}

// WithTimeout overrides Config.API.Timeout for one call. 0 disables the deadline.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.timeout = d
	}
}

// WithHeader adds a request header. Authorization and X-Request-ID are always set by
// the client.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.header == nil {
			o.header = make(http.Header)
		}
		o.header.Add(key, value)
	}
}

// WithQuery merges values into the URL query.
func WithQuery(values url.Values) RequestOption {
	return func(o *requestOptions) {
		if o.query == nil {
			o.query = make(url.Values)
		}
		for k, vs := range values {
			for _, v := range vs {
				o.query.Add(k, v)
			}
		}
	}
}

// MultipartFile is one file part of a [Multipart] body.
type MultipartFile struct {
	Field    string
	Filename string
	Content  []byte
}

// Multipart is a multipart/form-data request body.
type Multipart struct {
	Fields map[string]string
	Files  []MultipartFile
}

func (m *Multipart) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range m.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	for _, f := range m.Files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts...)
}

// Post issues a POST request with body.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts...)
}

// Put issues a PUT request with body.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Result, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts...)
}

// Do issues one logical request. path is joined to the base URL unless it is an
// absolute http(s) URL. body may be nil, []byte, an io.Reader, a *Multipart, or any
// JSON-encodable value.
//
// A 401 on the first attempt triggers one coalesced refresh and one retry with the
// new token. A 401 that survives the refresh clears the session. Every failure is a
// *RequestError, except ErrNilClient on a nil receiver; an unusable path or body is
// a ValidationError with Status 0.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Result, error) {
	if c == nil {
		return nil, ErrNilClient
	}
	if ctx == nil {
		ctx = context.Background()
	}

	o := requestOptions{timeout: c.cfg.API.Timeout}
	for _, opt := range opts {
		opt(&o)
	}

	target, err := c.resolve(path, o.query)
	if err != nil {
		return nil, invalidRequest(err)
	}
	payload, contentType, err := encodeBody(body)
	if err != nil {
		return nil, invalidRequest(err)
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	req := outgoing{
		method:      method,
		url:         target,
		body:        payload,
		contentType: contentType,
		header:      o.header,
		requestID:   requestIDFor(ctx),
	}

	c.metrics.Inc(MetricRequestTotal)
	start := time.Now()
	res := flows.RunRequest(ctx, flows.RequestDeps{
		Token: func() (string, error) {
			return c.tokenFor(ctx)
		},
		Send: func(ctx context.Context, token string) (*flows.Response, error) {
			return c.send(ctx, req, token)
		},
		Refresh: c.refreshAfter,
		OnTransition: func(from, to flows.State) {
			c.logger.DebugContext(ctx, "sprada: request state",
				"request_id", req.requestID, "from", from.String(), "to", to.String())
		},
	})
	c.metrics.Observe(MetricRequestLatency, time.Since(start))
	if res.Refreshed {
		c.metrics.Inc(MetricRequestRetried)
	}

	return c.finish(ctx, req, path, res)
}

// tokenFor returns the token for the first attempt, refreshing ahead of time when the
// token is a JWT about to expire. An error means that refresh failed and the session
// is gone, so the request should not be sent.
func (c *Client) tokenFor(ctx context.Context) (string, error) {
	st := c.store.State()
	leeway := c.cfg.Session.RefreshLeeway
	if leeway <= 0 || st.AccessToken == "" || st.RefreshToken == "" {
		return st.AccessToken, nil
	}
	if !jwt.ExpiresWithin(st.AccessToken, leeway, time.Now()) {
		return st.AccessToken, nil
	}

	c.metrics.Inc(MetricProactiveRefresh)
	token, err := c.store.Refresh(ctx)
	if err == nil {
		return token, nil
	}
	if ctx.Err() != nil {
		// The caller stopped waiting; the shared refresh still decides the session.
		return c.store.AccessToken(), nil
	}
	c.logger.DebugContext(ctx, "sprada: proactive refresh failed", "error", err)
	return "", err
}

// refreshAfter returns a token to retry with after staleToken got a 401. When another
// call already replaced the token, that one is reused without a network refresh.
func (c *Client) refreshAfter(ctx context.Context, staleToken string) (string, error) {
	if current := c.store.AccessToken(); current != "" && current != staleToken {
		return current, nil
	}
	return c.store.Refresh(ctx)
}

func (c *Client) finish(ctx context.Context, req outgoing, path string, res flows.RequestResult) (*Result, error) {
	if res.State == flows.StateSuccess {
		c.metrics.Inc(MetricRequestSuccess)
		return newResult(res.Response), nil
	}

	var reqErr *apierr.RequestError
	switch {
	case res.State == flows.StateLoggedOut:
		// The caller sees the 401 that started it all, not the refresh failure.
		reqErr = apierr.FromStatus(http.StatusUnauthorized, errorBody(res.AuthFailure))
		reqErr.Err = res.Err
	case res.Err != nil:
		reqErr = transportFailure(ctx, res.Response, res.Err)
	case res.Response != nil:
		reqErr = apierr.FromStatus(res.Response.Status, errorBody(res.Response))
	default:
		reqErr = apierr.New(apierr.KindNetworkError, 0, "request ended without a response", nil)
	}

	// Even a fresh token was refused: the session is no longer usable.
	rejected := res.RejectedAfterRefresh()
	if rejected {
		c.store.Logout(ctx)
	}

	c.recordFailure(ctx, req, path, res, reqErr, rejected || res.State == flows.StateLoggedOut)
	return nil, reqErr
}

// transportFailure maps an attempt that produced no usable response.
func transportFailure(ctx context.Context, resp *flows.Response, err error) *apierr.RequestError {
	if errors.Is(err, ErrResponseTooLarge) && resp != nil {
		e := apierr.New(apierr.KindServerError, resp.Status, err.Error(), nil)
		e.Err = err
		return e
	}
	e := apierr.FromTransportContext(ctx, err)
	if resp != nil {
		e.RawBody = errorBody(resp)
	}
	return e
}

func invalidRequest(err error) *apierr.RequestError {
	e := apierr.New(apierr.KindValidationError, 0, err.Error(), nil)
	e.Err = err
	return e
}

func (c *Client) recordFailure(ctx context.Context, req outgoing, path string, res flows.RequestResult, err *apierr.RequestError, expired bool) {
	c.metrics.Inc(errorMetric(err.Kind))

	event := AuditEvent{
		EventType: AuditRequestFailure,
		RequestID: req.requestID,
		Method:    req.method,
		Path:      path,
		Status:    err.Status,
		Error:     err.Error(),
	}
	if expired {
		c.metrics.Inc(MetricSessionExpired)
		event.EventType = AuditSessionExpired
	}
	c.emitAudit(ctx, event)

	level := slog.LevelDebug
	switch {
	case err.Status == 0 || err.Status >= 500 || err.Kind == apierr.KindServerError:
		level = slog.LevelError
	case err.Status == http.StatusUnauthorized:
		level = slog.LevelInfo
	}
	c.logger.LogAttrs(ctx, level, "sprada: request failed",
		slog.String("request_id", req.requestID),
		slog.String("method", req.method),
		slog.String("path", path),
		slog.Int("status", err.Status),
		slog.String("kind", err.Kind.String()),
		slog.Int("attempt", res.Attempts),
		slog.String("state", res.State.String()),
		slog.String("error", err.Message),
	)
}

func errorMetric(kind apierr.Kind) MetricID {
	switch kind {
	case apierr.KindUnauthorized:
		return MetricErrorUnauthorized
	case apierr.KindNotFound:
		return MetricErrorNotFound
	case apierr.KindConflict:
		return MetricErrorConflict
	case apierr.KindServerError:
		return MetricErrorServer
	case apierr.KindTimeout:
		return MetricErrorTimeout
	case apierr.KindNetworkError:
		return MetricErrorNetwork
	default:
		return MetricErrorValidation
	}
}

/*
====================================
TRANSPORT
====================================
*/

// outgoing is a fully encoded request that can be sent more than once.
type outgoing struct {
	method      string
	url         string
	body        []byte
	contentType string
	header      http.Header
	requestID   string
}

// send performs one attempt. A non-nil error means no response was received.
func (c *Client) send(ctx context.Context, req outgoing, token string) (*flows.Response, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return nil, err
	}

	for k, vs := range req.header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}
	hr.Header.Set("Accept", "application/json")
	hr.Header.Set("X-Request-ID", req.requestID)
	if c.cfg.API.UserAgent != "" {
		hr.Header.Set("User-Agent", c.cfg.API.UserAgent)
	}
	if req.contentType != "" {
		hr.Header.Set("Content-Type", req.contentType)
	}
	if token != "" {
		hr.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(hr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limit := c.cfg.API.MaxResponseBytes
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	out := &flows.Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
	}
	if int64(len(data)) > limit {
		// An error body is still worth reporting cut short; a success is not.
		out.Body = data[:limit]
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return out, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, limit)
		}
	}
	return out, nil
}

// resolve joins path to the base URL. Absolute http(s) URLs pass through.
func (c *Client) resolve(path string, query url.Values) (string, error) {
	var u *url.URL
	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		parsed, err := url.Parse(path)
		if err != nil {
			return "", fmt.Errorf("sprada: invalid url %q: %w", path, err)
		}
		u = parsed
	} else {
		ref, err := url.Parse(path)
		if err != nil {
			return "", fmt.Errorf("sprada: invalid path %q: %w", path, err)
		}
		joined := *c.baseURL
		joined.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
		joined.RawPath = ""
		joined.RawQuery = ref.RawQuery
		joined.Fragment = ""
		u = &joined
	}

	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// encodeBody buffers body so a retry can resend it.
func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "", nil
	case *Multipart:
		if b == nil {
			return nil, "", nil
		}
		data, ct, err := b.encode()
		if err != nil {
			return nil, "", fmt.Errorf("%w: multipart: %v", ErrUnsupportedBody, err)
		}
		return data, ct, nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, "", fmt.Errorf("%w: read: %v", ErrUnsupportedBody, err)
		}
		return data, "", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedBody, err)
		}
		return data, "application/json", nil
	}
}
