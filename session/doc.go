// Package session holds the client's credentials: access token, refresh token and the
// cached user record.
//
// # Store
//
// [Store] is the single writer of session state. Every mutation (login, logout, user
// update, refresh) replaces the state atomically, persists it through a [Storage]
// backend and then notifies subscribers, in subscription order, with a complete
// snapshot. Storage failures are logged and swallowed: the in-memory state stays
// authoritative.
//
// Refreshes are coalesced per Store: concurrent callers of [Store.Refresh] share one
// call to the [Refresher].
//
// # Storage backends
//
//   - [MemoryStorage] for tests and short-lived processes.
//   - [FileStorage] keeps one JSON document on disk.
//   - [RedisStorage] shares the session between processes.
//
// # What this package must NOT do
//
//   - Import sprada or issue HTTP requests itself (the [Refresher] does).
//   - Surface storage errors to callers of mutating methods.
package session
