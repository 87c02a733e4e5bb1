// Package internal contains helpers that are private to the sprada module.
//
// # Sub-packages
//
//   - flows: the per-call request state machine
//   - fakeapi: an in-memory backend used by tests, the CLI and the examples
//
// # What this package must NOT do
//
//   - Export types that appear in the public sprada API.
//   - Be imported by any package outside the module.
package internal
