// Package fakeapi is an in-memory implementation of the admin REST API used by tests,
// the CLI demo mode and the examples.
//
// It issues HS256 access tokens, rotates opaque refresh tokens on every refresh and
// serves bearer-protected CRUD for products, blogs, leads and users. [Server.Expire]
// invalidates every issued access token so callers can exercise silent refresh.
package fakeapi
