package apierr

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// RequestError is the terminal failure of a request or refresh.
//
// Status is zero when no HTTP response was involved (transport failure, timeout,
// missing refresh token). RawBody holds the decoded JSON body, the raw text body, or nil.
type RequestError struct {
	Kind    Kind
	Status  int
	Message string
	RawBody any
	Err     error
}

// New builds a RequestError with an explicit message.
func New(kind Kind, status int, message string, rawBody any) *RequestError {
	return &RequestError{
		Kind:    kind,
		Status:  status,
		Message: message,
		RawBody: rawBody,
	}
}

// FromStatus builds a RequestError for a non-2xx response. The message is taken from
// the body's "message" or "error" field when present, otherwise from the status text.
func FromStatus(status int, rawBody any) *RequestError {
	return New(KindFromStatus(status), status, messageFor(status, rawBody), rawBody)
}

// Unauthorized builds the error returned when the session could not be renewed.
func Unauthorized(message string, rawBody any, cause error) *RequestError {
	e := New(KindUnauthorized, 0, message, rawBody)
	e.Err = cause
	return e
}

// FromTransport classifies a transport failure. Only an expired deadline, whether a
// context deadline or http.Client.Timeout, becomes KindTimeout. Everything else,
// including a caller's context.Canceled and OS-level dial timeouts, is
// KindNetworkError. The cause stays reachable through errors.Is.
func FromTransport(err error) *RequestError {
	kind := KindNetworkError
	if isTimeout(err) {
		kind = KindTimeout
	}
	e := New(kind, 0, kind.Sentinel().Error(), nil)
	if err != nil {
		e.Message = e.Message + ": " + err.Error()
	}
	e.Err = err
	return e
}

// FromTransportContext is FromTransport for a call made under ctx. Once ctx's
// deadline has passed the failure is a Timeout whatever the transport reported.
func FromTransportContext(ctx context.Context, err error) *RequestError {
	e := FromTransport(err)
	if e.Kind != KindTimeout && ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		e.Kind = KindTimeout
		e.Message = KindTimeout.Sentinel().Error()
		if err != nil {
			e.Message += ": " + err.Error()
		}
	}
	return e
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout() && strings.Contains(ue.Error(), "Client.Timeout")
}

// Error implements error.
func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		b.WriteString(" (")
		b.WriteString(strconv.Itoa(e.Status))
		b.WriteByte(')')
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Unwrap exposes the underlying cause.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, so errors.Is(err, ErrNotFound) works
// without a type assertion.
func (e *RequestError) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && s == target
}

// HasStatus reports whether the failure carried an HTTP status.
func (e *RequestError) HasStatus() bool {
	return e.Status != 0
}

// Expected reports whether the error is a client error that callers handle as normal
// control flow. Failures without a status or with status >= 500 are unexpected.
func (e *RequestError) Expected() bool {
	return e.Status != 0 && e.Status < 500
}

// KindOf returns the kind of the first RequestError in err's chain.
func KindOf(err error) (Kind, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func messageFor(status int, rawBody any) string {
	if m, ok := rawBody.(map[string]any); ok {
		for _, key := range []string{"message", "error", "detail"} {
			if s, ok := m[key].(string); ok && s != "" {
				return s
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "HTTP " + strconv.Itoa(status)
}
