package fakeapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/Khatrip009/adminsprada-sub000/jwt"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the access claims stored by the bearer middleware.
func ClaimsFromContext(ctx context.Context) (*jwt.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*jwt.AccessClaims)
	return claims, ok
}

// requireBearer rejects requests without a live access token. Tokens must both verify
// and still be in the issued set, which Expire empties.
func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		s.mu.Lock()
		_, live := s.access[token]
		s.mu.Unlock()
		if !live {
			writeError(w, http.StatusUnauthorized, "token expired")
			return
		}

		claims, err := s.tokens.ParseAccess(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
