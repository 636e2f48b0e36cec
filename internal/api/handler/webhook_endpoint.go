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

type WebhookEndpoint struct {
	svc        *core.WebhookEndpointService
	deliveries *core.WebhookDeliveryService
}

func NewWebhookEndpoint(svc *core.WebhookEndpointService, deliveries *core.WebhookDeliveryService) *WebhookEndpoint {
	return &WebhookEndpoint{svc: svc, deliveries: deliveries}
}

// Create godoc
//
//	@Summary		Register a webhook endpoint
//	@Description	Registers a delivery target for the account. The signing secret is generated unless provided, returned once in plaintext, and stored encrypted.
//	@Tags			Webhook Endpoints
//	@Security		SessionAuth
//	@Param			body	body		request.CreateWebhookEndpoint	true	"Endpoint details"
//	@Success		201		{object}	model.WebhookEndpoint
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/webhook-endpoints [post]
func (h *WebhookEndpoint) Create(w http.ResponseWriter, r *http.Request) {
	claims := mw.GetSession(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing session token")
		return
	}

	var req request.CreateWebhookEndpoint
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ep, secret, err := h.svc.Create(r.Context(), claims.Subject, req.URL, req.Events, req.Secret)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	// Return with secret visible (only shown on creation).
	type endpointWithSecret struct {
		*model.WebhookEndpoint
		Secret string `json:"secret"`
	}
	response.WriteJSON(w, http.StatusCreated, endpointWithSecret{
		WebhookEndpoint: ep,
		Secret:          secret,
	})
}

// List godoc
//
//	@Summary		List webhook endpoints
//	@Description	Returns a paginated list of the account's endpoints. Signing secrets are never included.
//	@Tags			Webhook Endpoints
//	@Security		SessionAuth
//	@Param			limit	query		int		false	"Page size"	default(50)
//	@Param			cursor	query		string	false	"Pagination cursor"
//	@Success		200		{object}	response.PaginatedResponse{items=[]model.WebhookEndpoint}
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/webhook-endpoints [get]
func (h *WebhookEndpoint) List(w http.ResponseWriter, r *http.Request) {
	claims := mw.GetSession(r.Context())
	if claims == nil {
		response.WriteError(w, http.StatusUnauthorized, "missing session token")
		return
	}

	pg := request.ParsePagination(r)

	endpoints, hasMore, err := h.svc.ListByOwner(r.Context(), claims.Subject, pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	var nextCursor string
	if hasMore && len(endpoints) > 0 {
		nextCursor = endpoints[len(endpoints)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, endpoints, nextCursor, hasMore)
}

// Get godoc
//
//	@Summary		Get a webhook endpoint
//	@Tags			Webhook Endpoints
//	@Security		SessionAuth
//	@Param			id	path		string	true	"Endpoint ID"
//	@Success		200	{object}	model.WebhookEndpoint
//	@Failure		400	{object}	response.ErrorResponse
//	@Failure		404	{object}	response.ErrorResponse
//	@Failure		500	{object}	response.ErrorResponse
//	@Router			/webhook-endpoints/{id} [get]
func (h *WebhookEndpoint) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ep, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	if !requireOwner(w, r, ep.OwnerID) {
		return
	}

	response.WriteJSON(w, http.StatusOK, ep)
}

// Update godoc
//
//	@Summary		Update a webhook endpoint
//	@Description	Patches the URL, event subscriptions, or the active flag. Absent fields are left unchanged. The signing secret can only change through rotate.
//	@Tags			Webhook Endpoints
//	@Security		SessionAuth
//	@Param			id		path		string							true	"Endpoint ID"
//	@Param			body	body		request.UpdateWebhookEndpoint	true	"Fields to update"
//	@Success		200		{object}	model.WebhookEndpoint
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		404		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/webhook-endpoints/{id} [patch]
func (h *WebhookEndpoint) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateWebhookEndpoint
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ep, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	if !requireOwner(w, r, ep.OwnerID) {
		return
	}

	url := ep.URL
	if req.URL != "" {
		url = req.URL
	}
	events := ep.SubscribedEvents
	if req.Events != nil {
		events = req.Events
	}
	isActive := ep.IsActive
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	updated, err := h.svc.Update(r.Context(), id, url, events, isActive)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, updated)
}

// Rotate godoc
//
//	@Summary		Rotate a webhook signing secret
//	@Description	Replaces the endpoint's signing secret and returns the new plaintext once. Deliveries signed with the old secret stop verifying immediately.
//	@Tags			Webhook Endpoints
//	@Security		SessionAuth
//	@Param			id	path		string	true	"Endpoint ID"
//	@Success		200	{object}	map[string]string
//	@Failure		400	{object}	response.ErrorResponse
//	@Failure		404	{object}	response.ErrorResponse
//	@Failure		500	{object}	response.ErrorResponse
//	@Router			/webhook-endpoints/{id}/rotate [post]
func (h *WebhookEndpoint) Rotate(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ep, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	if !requireOwner(w, r, ep.OwnerID) {
		return
	}

	secret, err := h.svc.RotateSecret(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"secret": secret})
}

// ListDeliveries godoc
//
//	@Summary		List deliveries for a webhook endpoint
//	@Description	Returns the endpoint's most recent delivery attempts, newest first.
//	@Tags			Webhook Endpoints
//	@Security		SessionAuth
//	@Param			id		path		string	true	"Endpoint ID"
//	@Param			limit	query		int		false	"Page size"	default(50)
//	@Success		200		{object}	map[string][]model.WebhookDelivery
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		404		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/webhook-endpoints/{id}/deliveries [get]
func (h *WebhookEndpoint) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ep, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	if !requireOwner(w, r, ep.OwnerID) {
		return
	}

	pg := request.ParsePagination(r)

	deliveries, err := h.deliveries.ListByEndpoint(r.Context(), id, pg.Limit)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string][]model.WebhookDelivery{"deliveries": deliveries})
}

// Delete godoc
//
//	@Summary		Delete a webhook endpoint
//	@Description	Removes the endpoint. Pending deliveries to it will fail and stay in the delivery log.
//	@Tags			Webhook Endpoints
//	@Security		SessionAuth
//	@Param			id	path	string	true	"Endpoint ID"
//	@Success		204
//	@Failure		400	{object}	response.ErrorResponse
//	@Failure		404	{object}	response.ErrorResponse
//	@Failure		500	{object}	response.ErrorResponse
//	@Router			/webhook-endpoints/{id} [delete]
func (h *WebhookEndpoint) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ep, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	if !requireOwner(w, r, ep.OwnerID) {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		response.WriteServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
