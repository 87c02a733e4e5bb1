// Package jwt reads and issues the backend's JWT access tokens.
//
// The client never verifies signatures: it only peeks at the registered claims of its
// own access token ([Inspect]) to decide whether a proactive refresh is due. [Manager]
// signs and verifies HS256 tokens for the in-repo fake backend.
//
// # What this package must NOT do
//
//   - Treat [Inspect] output as authenticated data.
//   - Import sprada or session.
package jwt
