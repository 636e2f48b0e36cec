package activity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/leyden/paysandbox/internal/core"
	"github.com/leyden/paysandbox/internal/metrics"
)

// Webhook contains activities for delivering signed events to merchant
// endpoints.
type Webhook struct {
	endpoints  *core.WebhookEndpointService
	deliveries *core.WebhookDeliveryService
	verifier   *core.WebhookVerifier
	client     *http.Client
}

// NewWebhook creates a new Webhook activity struct.
func NewWebhook(endpoints *core.WebhookEndpointService, deliveries *core.WebhookDeliveryService, verifier *core.WebhookVerifier) *Webhook {
	return &Webhook{
		endpoints:  endpoints,
		deliveries: deliveries,
		verifier:   verifier,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// DeliverWebhook signs the event payload with the endpoint's secret and
// POSTs it to the endpoint URL. The payload bytes come through workflow
// history unmodified, so every retry signs the exact bytes the receiver
// will verify.
//   - 2xx → delivered (return nil)
//   - 4xx → non-retryable error (the endpoint rejected it, don't retry)
//   - 5xx / network error → retryable error (Temporal retries)
//
// The delivery row is updated on every outcome; a bookkeeping failure
// never masks the delivery error the workflow retries on.
func (a *Webhook) DeliverWebhook(ctx context.Context, input core.DeliverEventInput) error {
	ep, err := a.endpoints.GetByID(ctx, input.EndpointID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// The endpoint was deleted after the event was enqueued.
			a.failDelivery(ctx, input.DeliveryID, "endpoint no longer exists", "ENDPOINT_GONE")
			return temporal.NewNonRetryableApplicationError("endpoint no longer exists", "ENDPOINT_GONE", nil)
		}
		return fmt.Errorf("load endpoint %s: %w", input.EndpointID, err)
	}

	secret, err := a.endpoints.DecryptSecret(ep)
	if err != nil {
		a.failDelivery(ctx, input.DeliveryID, "signing secret unavailable", "SECRET_ERROR")
		return temporal.NewNonRetryableApplicationError("decrypt endpoint secret", "SECRET_ERROR", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(input.Payload))
	if err != nil {
		a.failDelivery(ctx, input.DeliveryID, err.Error(), "REQUEST_ERROR")
		return temporal.NewNonRetryableApplicationError("create delivery request", "REQUEST_ERROR", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(core.SignatureHeader, a.verifier.SignOutbound(input.Payload, secret))
	req.Header.Set(core.TimestampHeader, strconv.FormatInt(time.Now().Unix(), 10))

	resp, err := a.client.Do(req)
	if err != nil {
		a.failDelivery(ctx, input.DeliveryID, err.Error(), "NETWORK_ERROR")
		return fmt.Errorf("webhook POST to %s: %w", ep.URL, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		metrics.WebhookDeliveries.WithLabelValues(metrics.ResultOK).Inc()
		if err := a.deliveries.MarkDelivered(ctx, input.DeliveryID); err != nil {
			return fmt.Errorf("mark delivery %s delivered: %w", input.DeliveryID, err)
		}
		return nil
	}

	msg := fmt.Sprintf("endpoint returned %d", resp.StatusCode)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		a.failDelivery(ctx, input.DeliveryID, msg, "CLIENT_ERROR")
		return temporal.NewNonRetryableApplicationError(msg, "CLIENT_ERROR", nil)
	}
	a.failDelivery(ctx, input.DeliveryID, msg, "SERVER_ERROR")
	return errors.New(msg)
}

// failDelivery records a failed attempt on the delivery row. Errors are
// dropped; the caller already carries the delivery error itself.
func (a *Webhook) failDelivery(ctx context.Context, deliveryID, lastError, result string) {
	metrics.WebhookDeliveries.WithLabelValues(result).Inc()
	_ = a.deliveries.MarkFailed(ctx, deliveryID, lastError)
}
