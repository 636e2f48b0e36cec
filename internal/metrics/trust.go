package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the trust decisions this service exists to make. The result
// label carries the internal reason (NOT_FOUND, REVOKED, ...) for key
// validations and the error code for webhook verifications; "ok" on
// success. Reasons are safe to export here because metrics never reach the
// caller who was rejected.
var (
	APIKeyValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandbox_api_key_validations_total",
			Help: "API key validation attempts by result",
		},
		[]string{"result"},
	)

	WebhookVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandbox_webhook_verifications_total",
			Help: "Inbound webhook signature verifications by result",
		},
		[]string{"result"},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandbox_webhook_deliveries_total",
			Help: "Outbound webhook delivery attempts by result",
		},
		[]string{"result"},
	)
)

// ResultOK is the result label recorded for successful trust decisions.
const ResultOK = "ok"
