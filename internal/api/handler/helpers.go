package handler

import (
	"net/http"

	mw "github.com/leyden/paysandbox/internal/api/middleware"
	"github.com/leyden/paysandbox/internal/api/response"
	"github.com/leyden/paysandbox/internal/core"
)

// requireOwner verifies that the session account owns the resource.
// A foreign owner gets the same 404 an unknown ID gets, so resource IDs
// cannot be probed across accounts. Returns false after writing the
// error response.
func requireOwner(w http.ResponseWriter, r *http.Request, resourceOwnerID string) bool {
	claims := mw.GetSession(r.Context())
	if claims == nil || claims.Subject != resourceOwnerID {
		response.WriteServiceError(w, core.ErrNotFound)
		return false
	}
	return true
}
