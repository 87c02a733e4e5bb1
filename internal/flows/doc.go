// Package flows contains the request state machine behind every Client call.
//
// [RunRequest] accepts a typed dependency struct and drives one logical request from
// Idle to a terminal state, refreshing and retrying at most once on a 401. It knows
// nothing about URLs, JSON or error kinds; the root package maps the result.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import sprada (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through [RequestDeps].
package flows
