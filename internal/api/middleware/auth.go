package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/leyden/paysandbox/internal/api/response"
	"github.com/leyden/paysandbox/internal/core"
	"github.com/leyden/paysandbox/internal/metrics"
	"github.com/leyden/paysandbox/internal/model"
)

type contextKey string

const APIKeyIdentityKey contextKey = "api_key_identity"

// APIKeyAuth returns a middleware that authenticates sandbox requests with
// an API key pair, enforces the key's IP and endpoint restrictions, and
// records usage after the handler runs. The secret travels either as a
// bearer token or in x-sandbox-secret; the public key always in
// x-sandbox-key. Every rejection is the same generic 401.
func APIKeyAuth(keys *core.APIKeyService, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			publicKey, secret := extractCredentials(r)
			if publicKey == "" || secret == "" {
				metrics.APIKeyValidations.WithLabelValues("MISSING_CREDENTIALS").Inc()
				response.WriteErrorCode(w, http.StatusUnauthorized, core.CodeInvalidAPIKey, "invalid API key")
				return
			}

			key, err := keys.Validate(r.Context(), publicKey, secret)
			if err != nil {
				var authErr *core.AuthError
				if errors.As(err, &authErr) {
					// The real reason stays in logs and metrics.
					logger.Debug().
						Str("public_key", publicKey).
						Str("reason", authErr.Reason).
						Msg("api key rejected")
					metrics.APIKeyValidations.WithLabelValues(authErr.Reason).Inc()
					response.WriteErrorCode(w, http.StatusUnauthorized, authErr.Code(), authErr.Error())
					return
				}
				logger.Error().Err(err).Msg("api key validation failed")
				response.WriteError(w, http.StatusInternalServerError, "internal error")
				return
			}
			metrics.APIKeyValidations.WithLabelValues(metrics.ResultOK).Inc()

			if !keys.CheckIPAllowed(key, clientIP(r)) {
				logger.Debug().
					Str("key_id", key.ID).
					Str("ip", clientIP(r)).
					Msg("ip not in key allowlist")
				response.WriteError(w, http.StatusForbidden, "ip address not allowed for this key")
				return
			}
			if !keys.CheckEndpointAllowed(key, routePath(r)) {
				response.WriteError(w, http.StatusForbidden, "endpoint not allowed for this key")
				return
			}

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			ctx := context.WithValue(r.Context(), APIKeyIdentityKey, key)
			next.ServeHTTP(sw, r.WithContext(ctx))

			// The request context may be gone once the handler returns.
			if err := keys.RecordUsage(context.Background(), key.ID, sw.status < http.StatusBadRequest); err != nil {
				logger.Error().Err(err).Str("key_id", key.ID).Msg("record api key usage")
			}
		})
	}
}

// GetAPIKey extracts the authenticated key from the request context.
func GetAPIKey(ctx context.Context) *model.APIKey {
	key, _ := ctx.Value(APIKeyIdentityKey).(*model.APIKey)
	return key
}

// extractCredentials pulls the public key and secret from the request
// headers. Both must be present for validation to be attempted.
func extractCredentials(r *http.Request) (publicKey, secret string) {
	publicKey = r.Header.Get("x-sandbox-key")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		secret = strings.TrimPrefix(auth, "Bearer ")
	} else {
		secret = r.Header.Get("x-sandbox-secret")
	}
	return publicKey, secret
}

// clientIP returns the remote address without the port. RealIP middleware
// has already folded X-Forwarded-For into RemoteAddr, in which case there
// is no port to strip.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// routePath returns the chi route pattern when available so endpoint
// restrictions match the registered route, not a raw URL.
func routePath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}
