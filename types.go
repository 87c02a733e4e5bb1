package sprada

import "github.com/Khatrip009/adminsprada-sub000/session"

// Session value types, aliased so most callers only import this package.
type (
	// User is the cached profile of the logged-in user.
	User = session.User
	// UserID accepts JSON numbers and strings.
	UserID = session.ID
	// Credentials is the input of [Client.LoginWithTokens].
	Credentials = session.Credentials
	// SessionState is the snapshot delivered to subscribers.
	SessionState = session.State
	// Listener receives a snapshot after every session mutation.
	Listener = session.Listener
)
