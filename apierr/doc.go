// Package apierr defines the normalized failure taxonomy returned by the request client
// and the session store.
//
// Every terminal failure is a [*RequestError] carrying a [Kind], the HTTP status when one
// exists, a human-readable message, and the response body that caused it.
//
// # Architecture boundaries
//
// This package is a leaf: it maps statuses and transport failures onto kinds. It does not
// issue requests, read sessions, or log.
//
// # What this package must NOT do
//
//   - Import sprada, session, or any transport package.
//   - Drop the response body of a failed request.
package apierr
