// Package sprada is the client library for the sprada admin REST API.
//
// A [Client] owns one session.Store and issues authenticated requests against the
// configured base URL. Every request attaches the current access token. A 401 on the
// first attempt triggers the store's coalesced refresh followed by exactly one retry
// of the identical request; when the refresh fails the session is cleared, subscribers
// are notified, and the call fails with a [RequestError] of kind Unauthorized that
// carries the original 401 body.
//
// # Construction
//
//	client, err := sprada.New().
//		WithConfig(cfg).
//		WithLogger(logger).
//		Build()
//
// Build validates the config, creates the session storage backend (memory, JSON file
// or Redis), restores any persisted session and starts the audit dispatcher when
// enabled. Call [Client.Close] when done.
//
// # Errors
//
// Request failures are *[RequestError] values. Match them by kind with errors.Is and
// the re-exported sentinels ([ErrUnauthorized], [ErrNotFound], ...), or extract the
// status and raw body with errors.As.
//
// # Concurrency
//
// Client methods are safe for concurrent use. Ordinary requests are independent;
// concurrent refreshes share one network call.
package sprada
