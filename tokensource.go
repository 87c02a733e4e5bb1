package sprada

import (
	"context"
	"net/http"

	"github.com/Khatrip009/adminsprada-sub000/apierr"
	"github.com/Khatrip009/adminsprada-sub000/jwt"
	"github.com/Khatrip009/adminsprada-sub000/refresh"
	"golang.org/x/oauth2"
)

type sessionTokenSource struct {
	ctx    context.Context
	client *Client
}

// TokenSource exposes the session as an oauth2.TokenSource, for libraries that take
// one. Tokens expiring within Config.Session.RefreshLeeway are refreshed first. ctx
// bounds those refreshes.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	if ctx == nil {
		ctx = context.Background()
	}
	return &sessionTokenSource{ctx: ctx, client: c}
}

// HTTPClient returns an *http.Client that authorizes requests with the session's
// bearer token. It neither retries on 401 nor uses the cookie jar; use [Client.Do]
// for API calls.
func (c *Client) HTTPClient(ctx context.Context) *http.Client {
	if ctx == nil {
		ctx = context.Background()
	}
	return oauth2.NewClient(ctx, c.TokenSource(ctx))
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	c := s.client
	if c == nil {
		return nil, ErrNilClient
	}
	token, err := c.tokenFor(s.ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, apierr.Unauthorized("not logged in", nil, nil)
	}
	// The refresh token stays inside the session.
	tok := refresh.Tokens{AccessToken: token}.OAuth2(jwt.Expiry(token))
	return tok, nil
}
