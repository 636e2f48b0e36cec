package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/leyden/paysandbox/internal/core"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteErrorCode writes an error with a machine-readable code. Used for
// webhook verification and credential failures, where integrators match
// on the code rather than the message.
func WriteErrorCode(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, map[string]string{"error": message, "code": code})
}

// WriteServiceError maps a service-layer error onto an HTTP response.
// Typed errors carry their own code; sentinel errors pick the status.
func WriteServiceError(w http.ResponseWriter, err error) {
	var authErr *core.AuthError
	var webhookErr *core.WebhookError
	var resetErr *core.ResetError
	switch {
	case errors.As(err, &authErr):
		WriteErrorCode(w, http.StatusUnauthorized, authErr.Code(), authErr.Error())
	case errors.As(err, &webhookErr):
		WriteErrorCode(w, webhookStatus(webhookErr.Code()), webhookErr.Code(), webhookErr.Error())
	case errors.As(err, &resetErr):
		WriteErrorCode(w, http.StatusBadRequest, resetErr.Code(), resetErr.Error())
	case errors.Is(err, core.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, core.ErrInvalidArgument):
		WriteError(w, http.StatusBadRequest, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// webhookStatus picks the status for a verification failure: a missing
// header is a malformed request, a stale timestamp is stale auth, a bad
// signature is a hard deny, and a missing secret is our misconfiguration.
func webhookStatus(code string) int {
	switch code {
	case core.CodeSignatureRequired:
		return http.StatusBadRequest
	case core.CodeTimestampExpired:
		return http.StatusUnauthorized
	case core.CodeInvalidSignature:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PaginatedResponse wraps a list with pagination metadata.
type PaginatedResponse struct {
	Items      any    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// WritePaginated writes a paginated JSON response.
func WritePaginated(w http.ResponseWriter, status int, items any, nextCursor string, hasMore bool) {
	WriteJSON(w, status, PaginatedResponse{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	})
}
