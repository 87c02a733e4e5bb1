package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by [Inspect] for opaque tokens.
var ErrNotJWT = errors.New("token is not a JWT")

// Claims is the unverified view of an access token.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Inspect decodes the claims of tokenStr without verifying its signature.
func Inspect(tokenStr string) (Claims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return Claims{}, errors.Join(ErrNotJWT, err)
	}

	out := Claims{
		Subject: claims.Subject,
		Email:   claims.Email,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

// ExpiresWithin reports whether tokenStr is a JWT whose exp falls before now+window.
// Opaque tokens and tokens without exp never report true.
func ExpiresWithin(tokenStr string, window time.Duration, now time.Time) bool {
	claims, err := Inspect(tokenStr)
	if err != nil || claims.ExpiresAt.IsZero() {
		return false
	}
	return claims.ExpiresAt.Before(now.Add(window))
}

// Expiry returns the exp of tokenStr, or the zero time when unknown.
func Expiry(tokenStr string) time.Time {
	claims, err := Inspect(tokenStr)
	if err != nil {
		return time.Time{}
	}
	return claims.ExpiresAt
}
