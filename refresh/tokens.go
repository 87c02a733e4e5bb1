package refresh

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrMalformedResponse is returned when the body is not a JSON object.
	ErrMalformedResponse = errors.New("malformed token response")
	// ErrMissingAccessToken is returned when no access token field is present.
	ErrMissingAccessToken = errors.New("token response has no access token")
)

var (
	accessTokenFields  = []string{"accessToken", "access_token", "token"}
	refreshTokenFields = []string{"refreshToken", "refresh_token"}
)

// Tokens is the normalized result of a login or refresh call. User is the raw "user"
// object when the server supplied one, nil otherwise.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	User         json.RawMessage
}

// HasUser reports whether the response carried a non-null user object.
func (t Tokens) HasUser() bool {
	trimmed := bytes.TrimSpace(t.User)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// OAuth2 converts the pair into an oauth2.Token. expiry may be zero when unknown.
func (t Tokens) OAuth2(expiry time.Time) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}
}

// Normalize decodes a token response body, accepting every field spelling the backend
// uses. The first non-empty spelling wins, in the order listed in the package docs.
func Normalize(body []byte) (Tokens, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		if err == nil {
			err = errors.New("body is null")
		}
		return Tokens{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	access, err := firstString(fields, accessTokenFields)
	if err != nil {
		return Tokens{}, err
	}
	if access == "" {
		return Tokens{}, ErrMissingAccessToken
	}

	refreshToken, err := firstString(fields, refreshTokenFields)
	if err != nil {
		return Tokens{}, err
	}

	out := Tokens{
		AccessToken:  access,
		RefreshToken: refreshToken,
	}
	if raw, ok := fields["user"]; ok {
		out.User = raw
		if !out.HasUser() {
			out.User = nil
		}
	}
	return out, nil
}

func firstString(fields map[string]json.RawMessage, names []string) (string, error) {
	for _, name := range names {
		raw, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: field %q is not a string", ErrMalformedResponse, name)
		}
		if s != "" {
			return s, nil
		}
	}
	return "", nil
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Request is the body of POST /auth/refresh.
type Request struct {
	RefreshToken string `json:"refreshToken"`
}
