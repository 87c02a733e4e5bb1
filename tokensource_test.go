package sprada

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSource(t *testing.T) {
	_, srv := newFakeBackend(t)
	client := newTestClient(t, srv.URL)
	ctx := context.Background()

	ts := client.TokenSource(ctx)
	_, err := ts.Token()
	assert.ErrorIs(t, err, ErrUnauthorized, "no token while logged out")

	_, err = client.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, client.AccessToken(), tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Empty(t, tok.RefreshToken, "refresh token stays inside the session")
	assert.False(t, tok.Expiry.IsZero())
	assert.True(t, tok.Valid())

	resp, err := client.HTTPClient(ctx).Get(srv.URL + "/auth/me")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTokenSourceOpaqueToken(t *testing.T) {
	client := newTestClient(t, "http://api.sprada.test")
	client.LoginWithTokens(context.Background(), Credentials{AccessToken: "opaque"})

	tok, err := client.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	assert.Equal(t, "opaque", tok.AccessToken)
	assert.True(t, tok.Expiry.IsZero())
	assert.True(t, tok.Valid())
}
