package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/leyden/paysandbox/internal/api/response"
	"github.com/leyden/paysandbox/internal/core"
)

const SessionClaimsKey contextKey = "session_claims"

// SessionAuth returns a middleware that validates the dashboard session
// token (Authorization: Bearer) and injects the claims into the context.
func SessionAuth(sessions *core.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing session token")
				return
			}
			claims, err := sessions.Validate(token)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "invalid session")
				return
			}
			ctx := context.WithValue(r.Context(), SessionClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession extracts the session claims from the request context.
func GetSession(ctx context.Context) *core.SessionClaims {
	claims, _ := ctx.Value(SessionClaimsKey).(*core.SessionClaims)
	return claims
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}
