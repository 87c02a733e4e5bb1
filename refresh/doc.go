// Package refresh normalizes the token responses of the login and refresh endpoints.
//
// # Response shapes
//
// The backend is not consistent about field names. The access token may arrive as
// accessToken, access_token or token; the refresh token as refreshToken or refresh_token.
// [Normalize] is the only place that tolerance exists; everything downstream works with
// [Tokens].
//
// # Architecture boundaries
//
// This package owns payload encoding and decoding for the auth endpoints. It performs no
// I/O and holds no session state.
//
// # What this package must NOT do
//
//   - Import sprada or session.
//   - Issue HTTP requests.
package refresh
