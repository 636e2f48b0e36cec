package middleware

import (
	"net/http"

	"github.com/leyden/paysandbox/internal/api/response"
	"github.com/leyden/paysandbox/internal/core"
	"github.com/leyden/paysandbox/internal/model"
)

// HasScope checks if the key holds the given resource:action scope (or the
// *:* wildcard).
func HasScope(key *model.APIKey, resource, action string) bool {
	if key == nil {
		return false
	}
	target := resource + ":" + action
	for _, s := range key.Permissions {
		if s == model.ScopeAll || s == target {
			return true
		}
	}
	return false
}

// RequireScope returns middleware that checks the authenticated key holds
// the given resource:action scope.
func RequireScope(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetAPIKey(r.Context())
			if !HasScope(key, resource, action) {
				response.WriteErrorCode(w, http.StatusForbidden, core.CodeInsufficientPermissions,
					"insufficient scope: requires "+resource+":"+action)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
