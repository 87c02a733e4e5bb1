package session

import (
	"context"
	"encoding/json"

	"github.com/Khatrip009/adminsprada-sub000/refresh"
)

// Persisted keys. An absent key is equivalent to an absent field.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

var allKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// State is a snapshot of the session. Version increases by one with every mutation.
type State struct {
	AccessToken  string
	RefreshToken string
	User         *User
	Version      uint64
}

// Authenticated reports whether the snapshot carries an access token.
func (s State) Authenticated() bool {
	return s.AccessToken != ""
}

func (s State) clone() State {
	s.User = s.User.Clone()
	return s
}

func (s State) value(key string) (string, error) {
	switch key {
	case KeyAccessToken:
		return s.AccessToken, nil
	case KeyRefreshToken:
		return s.RefreshToken, nil
	case KeyUser:
		if s.User == nil {
			return "", nil
		}
		data, err := json.Marshal(s.User)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", nil
	}
}

// Credentials is the input of [Store.Login].
type Credentials struct {
	AccessToken  string
	RefreshToken string
	User         *User
}

// Listener receives a snapshot after every mutation.
type Listener func(State)

// Refresher exchanges a refresh token for new tokens. Implementations return an error
// for non-2xx responses and malformed bodies.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (refresh.Tokens, error)
}

// RefresherFunc adapts a function to [Refresher].
type RefresherFunc func(ctx context.Context, refreshToken string) (refresh.Tokens, error)

// Refresh calls f.
func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (refresh.Tokens, error) {
	return f(ctx, refreshToken)
}
