package apierr

import (
	"errors"
	"net/http"
)

// Kind classifies a failed request.
type Kind uint8

const (
	// KindUnauthorized means the credentials were rejected and could not be renewed.
	KindUnauthorized Kind = iota + 1
	// KindNotFound is returned for 404 responses.
	KindNotFound
	// KindConflict is returned for 409 responses, e.g. a duplicate unique field.
	KindConflict
	// KindServerError is returned for 5xx responses.
	KindServerError
	// KindNetworkError is returned when the transport failed before a response arrived.
	KindNetworkError
	// KindTimeout is returned when the client-enforced deadline expired.
	KindTimeout
	// KindValidationError is returned for every other 4xx response.
	KindValidationError
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrServerError     = errors.New("server error")
	ErrNetworkError    = errors.New("network error")
	ErrTimeout         = errors.New("timeout")
	ErrValidationError = errors.New("validation error")
)

var kindNames = [...]string{
	KindUnauthorized:    "Unauthorized",
	KindNotFound:        "NotFound",
	KindConflict:        "Conflict",
	KindServerError:     "ServerError",
	KindNetworkError:    "NetworkError",
	KindTimeout:         "Timeout",
	KindValidationError: "ValidationError",
}

var kindSentinels = [...]error{
	KindUnauthorized:    ErrUnauthorized,
	KindNotFound:        ErrNotFound,
	KindConflict:        ErrConflict,
	KindServerError:     ErrServerError,
	KindNetworkError:    ErrNetworkError,
	KindTimeout:         ErrTimeout,
	KindValidationError: ErrValidationError,
}

func (k Kind) valid() bool {
	return k >= KindUnauthorized && k <= KindValidationError
}

// String returns the kind name, e.g. "ServerError".
func (k Kind) String() string {
	if !k.valid() {
		return "Unknown"
	}
	return kindNames[k]
}

// MarshalText encodes the kind by name so it reads well in JSON logs and audit events.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Sentinel returns the package-level error matched by errors.Is for this kind.
func (k Kind) Sentinel() error {
	if !k.valid() {
		return nil
	}
	return kindSentinels[k]
}

// Expected reports whether failures of this kind are ordinary control flow for callers
// (client errors) rather than anomalies.
func (k Kind) Expected() bool {
	switch k {
	case KindUnauthorized, KindNotFound, KindConflict, KindValidationError:
		return true
	default:
		return false
	}
}

// KindFromStatus maps a non-2xx HTTP status to a kind.
//
// 401 maps to KindUnauthorized; callers decide whether a 401 is terminal.
func KindFromStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status >= 500:
		return KindServerError
	default:
		return KindValidationError
	}
}
