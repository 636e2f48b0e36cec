package handler

import (
	"errors"
	"io"
	"net/http"

	mw "github.com/leyden/paysandbox/internal/api/middleware"
	"github.com/leyden/paysandbox/internal/api/request"
	"github.com/leyden/paysandbox/internal/api/response"
	"github.com/leyden/paysandbox/internal/core"
	"github.com/leyden/paysandbox/internal/metrics"
	"github.com/leyden/paysandbox/internal/model"
)

// Sandbox serves the API-key-authenticated surface merchants integrate
// against.
type Sandbox struct {
	events   *core.EventService
	verifier *core.WebhookVerifier
}

func NewSandbox(events *core.EventService, verifier *core.WebhookVerifier) *Sandbox {
	return &Sandbox{events: events, verifier: verifier}
}

// Ping godoc
//
//	@Summary		Introspect the calling API key
//	@Description	Returns the key's type, permissions, and usage counters as of this request's validation. Useful for checking what a credential can do.
//	@Tags			Sandbox
//	@Security		ApiKeyAuth
//	@Success		200	{object}	handler.pingResponse
//	@Failure		401	{object}	response.ErrorResponse
//	@Router			/ping [get]
func (h *Sandbox) Ping(w http.ResponseWriter, r *http.Request) {
	key := mw.GetAPIKey(r.Context())
	if key == nil {
		response.WriteError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	response.WriteJSON(w, http.StatusOK, pingResponse{
		PublicKey:   key.PublicKey,
		KeyType:     key.KeyType,
		Permissions: key.Permissions,
		Usage:       key.Usage,
	})
}

type pingResponse struct {
	PublicKey   string         `json:"public_key"`
	KeyType     string         `json:"key_type"`
	Permissions []string       `json:"permissions"`
	Usage       model.KeyUsage `json:"usage"`
}

// TestEvent godoc
//
//	@Summary		Emit a test event
//	@Description	Builds an event envelope and enqueues one signed delivery per active endpoint of the key's owner subscribed to the event type. An empty payload gets a placeholder body.
//	@Tags			Sandbox
//	@Security		ApiKeyAuth
//	@Param			body	body		request.TestEvent	true	"Event type and payload"
//	@Success		202		{object}	map[string][]model.WebhookDelivery
//	@Failure		400		{object}	response.ErrorResponse
//	@Failure		401		{object}	response.ErrorResponse
//	@Failure		403		{object}	response.ErrorResponse
//	@Failure		500		{object}	response.ErrorResponse
//	@Router			/events/test [post]
func (h *Sandbox) TestEvent(w http.ResponseWriter, r *http.Request) {
	key := mw.GetAPIKey(r.Context())
	if key == nil {
		response.WriteError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	var req request.TestEvent
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	deliveries, err := h.events.EmitTestEvent(r.Context(), key.OwnerID, req.EventType, req.Payload)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusAccepted, map[string][]model.WebhookDelivery{"deliveries": deliveries})
}

// Verify godoc
//
//	@Summary		Verify a webhook signature
//	@Description	Checks the x-sandbox-signature and x-sandbox-timestamp headers against the raw request body. The secret comes from the caller's endpoint named by the endpoint query parameter, or the process default when it is absent. The body must be the exact bytes that were signed.
//	@Tags			Sandbox
//	@Security		ApiKeyAuth
//	@Param			endpoint	query		string	false	"Endpoint ID owning the signing secret"
//	@Success		200			{object}	map[string]bool
//	@Failure		400			{object}	response.ErrorResponse
//	@Failure		401			{object}	response.ErrorResponse
//	@Failure		403			{object}	response.ErrorResponse
//	@Failure		500			{object}	response.ErrorResponse
//	@Router			/webhooks/verify [post]
func (h *Sandbox) Verify(w http.ResponseWriter, r *http.Request) {
	key := mw.GetAPIKey(r.Context())
	if key == nil {
		response.WriteError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	secret, err := h.verifier.ResolveSecret(r.Context(), key.OwnerID, r.URL.Query().Get("endpoint"))
	if err != nil {
		countVerification(err)
		response.WriteServiceError(w, err)
		return
	}

	err = h.verifier.VerifyInbound(payload, r.Header.Get(core.SignatureHeader), r.Header.Get(core.TimestampHeader), secret)
	countVerification(err)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

// countVerification records the outcome of one signature check.
func countVerification(err error) {
	if err == nil {
		metrics.WebhookVerifications.WithLabelValues(metrics.ResultOK).Inc()
		return
	}
	var webhookErr *core.WebhookError
	if errors.As(err, &webhookErr) {
		metrics.WebhookVerifications.WithLabelValues(webhookErr.Code()).Inc()
		return
	}
	metrics.WebhookVerifications.WithLabelValues("ERROR").Inc()
}
