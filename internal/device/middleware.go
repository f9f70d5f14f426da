package device

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/redmonkez12/locklog/internal/httputil"
)

type contextKey struct{}

// Verifier checks a bearer token. *TokenService satisfies it.
type Verifier interface {
	Verify(tokenStr string) (*Claims, error)
}

// RequireToken rejects requests without a valid device bearer token and
// stores the lock uid in the request context.
func RequireToken(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeUnauthorized, http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				httputil.RespondErrorWithCode(w, "invalid authorization header format", httputil.CodeUnauthorized, http.StatusUnauthorized)
				return
			}

			claims, err := v.Verify(parts[1])
			if err != nil {
				if errors.Is(err, ErrExpiredToken) {
					httputil.RespondErrorWithCode(w, "token has expired", httputil.CodeTokenInvalid, http.StatusUnauthorized)
					return
				}
				httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeTokenInvalid, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, claims.LockUID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LockFromContext returns the lock uid set by RequireToken.
func LockFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(contextKey{}).(string)
	return uid, ok && uid != ""
}
