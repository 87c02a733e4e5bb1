package sprada

import (
	"errors"

	"github.com/Khatrip009/adminsprada-sub000/apierr"
)

var (
	// ErrBuilderUsed is returned by a second call to Builder.Build.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrNilClient is returned when a method is called on a nil *Client.
	ErrNilClient = errors.New("nil client")
	// ErrUnsupportedBody is returned when a request body cannot be encoded.
	ErrUnsupportedBody = errors.New("unsupported request body")
	// ErrResponseTooLarge is the cause when a successful response exceeds
	// Config.API.MaxResponseBytes.
	ErrResponseTooLarge = errors.New("response body too large")
)

// Request failure sentinels, re-exported so callers can match with errors.Is without
// importing apierr.
var (
	ErrUnauthorized    = apierr.ErrUnauthorized
	ErrNotFound        = apierr.ErrNotFound
	ErrConflict        = apierr.ErrConflict
	ErrServerError     = apierr.ErrServerError
	ErrNetworkError    = apierr.ErrNetworkError
	ErrTimeout         = apierr.ErrTimeout
	ErrValidationError = apierr.ErrValidationError
)

// RequestError is the terminal failure of a request. See [apierr.RequestError].
type RequestError = apierr.RequestError

// ErrorKind classifies a RequestError. See [apierr.Kind].
type ErrorKind = apierr.Kind
