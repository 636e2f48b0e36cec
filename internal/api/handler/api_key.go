package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/leyden/paysandbox/internal/api/middleware"
	"github.com/leyden/paysandbox/internal/api/request"
	"github.com/leyden/paysandbox/internal/api/response"
	"github.com/leyden/paysandbox/internal/core"
	"github.com/leyden/paysandbox/internal/model"
)

type APIKey struct {
	svc *core.APIKeyService
}

func NewAPIKey(svc *core.APIKeyService) *APIKey {
	return &APIKey{svc: svc}
}

// Create godoc
//
//	@Summary		Issue an API key
//	@Description	Creates a credential of the given type. The response carries the plaintext secret; it is never retrievable again. Empty permissions default to full access.
//	@Tags			API Keys
//	@Security		SessionAuth
//	@Param			body	body		request.CreateAPIKey	true	"Key details"
//	@Success		201		{object}	model.APIKey
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/api-keys [post]
func (h *APIKey) Create(w http.ResponseWriter, r *http.Request) {
	claims := mw.GetSession(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing session token")
		return
	}

	var req request.CreateAPIKey
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, secret, err := h.svc.Issue(r.Context(), claims.Subject, req.KeyType, req.Permissions, req.ExpiresAt)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	// Return with secret visible (only shown on creation).
	type keyWithSecret struct {
		*model.APIKey
		Secret string `json:"secret"`
	}
	response.WriteJSON(w, http.StatusCreated, keyWithSecret{
		APIKey: key,
		Secret: secret,
	})
}

// List godoc
//
//	@Summary		List API keys
//	@Description	Returns a paginated list of the account's keys. Secrets are never included.
//	@Tags			API Keys
//	@Security		SessionAuth
//	@Param			limit	query		int		false	"Page size"	default(50)
//	@Param			cursor	query		string	false	"Pagination cursor"
//	@Success		200		{object}	response.PaginatedResponse{items=[]model.APIKey}
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/api-keys [get]
func (h *APIKey) List(w http.ResponseWriter, r *http.Request) {
	claims := mw.GetSession(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing session token")
		return
	}

	pg := request.ParsePagination(r)

	keys, hasMore, err := h.svc.ListByOwner(r.Context(), claims.Subject, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	var nextCursor string
	if hasMore && len(keys) > 0 {
		nextCursor = keys[len(keys)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, keys, nextCursor, hasMore)
}

// Get godoc
//
//	@Summary		Get an API key
//	@Tags			API Keys
//	@Security		SessionAuth
//	@Param			id	path		string	true	"API key ID"
//	@Success		200	{object}	model.APIKey
//	@Failure		400	{object}	response.ErrorResponse
//	@Failure		404	{object}	response.ErrorResponse
//	@Failure		500	{object}	response.ErrorResponse
//	@Router			/api-keys/{id} [get]
func (h *APIKey) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	if !requireOwner(w, r, key.OwnerID) {
		return
	}

	response.WriteJSON(w, http.StatusOK, key)
}

// Update godoc
//
//	@Summary		Update an API key
//	@Description	Patches permissions, restrictions, or the active flag. Absent fields are left unchanged.
//	@Tags			API Keys
//	@Security		SessionAuth
//	@Param			id		path		string					true	"API key ID"
//	@Param			body	body		request.UpdateAPIKey	true	"Fields to update"
//	@Success		200		{object}	model.APIKey
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		404		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/api-keys/{id} [patch]
func (h *APIKey) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateAPIKey
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	if !requireOwner(w, r, key.OwnerID) {
		return
	}

	if req.Permissions != nil {
		if _, err := h.svc.UpdatePermissions(r.Context(), id, req.Permissions); err != nil {
			response.WriteServiceError(w, err)
			return
		}
	}
	if req.Restrictions != nil {
		restrictions := model.KeyRestrictions{
			IPAllowlist: req.Restrictions.IPAllowlist,
			RateLimit: model.RateLimit{
				PerMinute: req.Restrictions.RateLimit.PerMinute,
				PerHour:   req.Restrictions.RateLimit.PerHour,
				PerDay:    req.Restrictions.RateLimit.PerDay,
			},
			AllowedEndpoints: req.Restrictions.AllowedEndpoints,
			BlockedEndpoints: req.Restrictions.BlockedEndpoints,
		}
		if _, err := h.svc.UpdateRestrictions(r.Context(), id, restrictions); err != nil {
			response.WriteServiceError(w, err)
			return
		}
	}
	if req.IsActive != nil {
		if err := h.svc.SetActive(r.Context(), id, *req.IsActive); err != nil {
			response.WriteServiceError(w, err)
			return
		}
	}

	updated, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, updated)
}

// Rotate godoc
//
//	@Summary		Rotate an API key secret
//	@Description	Replaces the secret and returns the new plaintext once. The old secret stops validating immediately.
//	@Tags			API Keys
//	@Security		SessionAuth
//	@Param			id	path		string	true	"API key ID"
//	@Success		200	{object}	map[string]string
//	@Failure		400	{object}	response.ErrorResponse
//	@Failure		404	{object}	response.ErrorResponse
//	@Failure		500	{object}	response.ErrorResponse
//	@Router			/api-keys/{id}/rotate [post]
func (h *APIKey) Rotate(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	if !requireOwner(w, r, key.OwnerID) {
		return
	}

	secret, err := h.svc.RotateSecret(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"secret": secret})
}

// Revoke godoc
//
//	@Summary		Revoke an API key
//	@Description	Soft-deletes the key. It fails validation immediately and stays revoked until reactivated.
//	@Tags			API Keys
//	@Security		SessionAuth
//	@Param			id	path	string	true	"API key ID"
//	@Success		204
//	@Failure		400	{object}	response.ErrorResponse
//	@Failure		404	{object}	response.ErrorResponse
//	@Failure		500	{object}	response.ErrorResponse
//	@Router			/api-keys/{id}/revoke [post]
func (h *APIKey) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	if !requireOwner(w, r, key.OwnerID) {
		return
	}

	if err := h.svc.Revoke(r.Context(), id); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reactivate godoc
//
//	@Summary		Reactivate a revoked API key
//	@Tags			API Keys
//	@Security		SessionAuth
//	@Param			id	path	string	true	"API key ID"
//	@Success		204
//	@Failure		400	{object}	response.ErrorResponse
//	@Failure		404	{object}	response.ErrorResponse
//	@Failure		500	{object}	response.ErrorResponse
//	@Router			/api-keys/{id}/reactivate [post]
func (h *APIKey) Reactivate(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	if !requireOwner(w, r, key.OwnerID) {
		return
	}

	if err := h.svc.Reactivate(r.Context(), id); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete godoc
//
//	@Summary		Delete an API key
//	@Description	Removes the key row entirely. Prefer revoke; delete leaves no audit trail on the key itself.
//	@Tags			API Keys
//	@Security		SessionAuth
//	@Param			id	path	string	true	"API key ID"
//	@Success		204
//	@Failure		400	{object}	response.ErrorResponse
//	@Failure		404	{object}	response.ErrorResponse
//	@Failure		500	{object}	response.ErrorResponse
//	@Router			/api-keys/{id} [delete]
func (h *APIKey) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	if !requireOwner(w, r, key.OwnerID) {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
