package core

import (
	"time"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/leyden/paysandbox/internal/crypto"
)

// ServicesConfig carries the secrets and tuning the trust core needs.
type ServicesConfig struct {
	// KEKHex is the hex-encoded master key sealing webhook signing
	// secrets at rest.
	KEKHex string
	// SessionSecret signs dashboard session tokens.
	SessionSecret string
	// SessionIssuer is the iss claim on session tokens.
	SessionIssuer string
	// WebhookDefaultSecret backs signature checks for sandbox flows with
	// no registered endpoint. Optional.
	WebhookDefaultSecret string
	// TimestampTolerance overrides the webhook replay window. Zero keeps
	// the default.
	TimestampTolerance time.Duration
}

// Services bundles the trust core's service layer.
type Services struct {
	Account         *AccountService
	Session         *SessionService
	APIKey          *APIKeyService
	WebhookEndpoint *WebhookEndpointService
	WebhookDelivery *WebhookDeliveryService
	WebhookVerifier *WebhookVerifier
	PasswordReset   *PasswordResetService
	Event           *EventService
}

// NewServices wires the service layer over one DB handle and one bounded
// hasher.
func NewServices(db DB, tc temporalclient.Client, hasher *crypto.Hasher, cfg ServicesConfig) *Services {
	endpoints := NewWebhookEndpointService(db, cfg.KEKHex)
	deliveries := NewWebhookDeliveryService(db)
	return &Services{
		Account:         NewAccountService(db, hasher),
		Session:         NewSessionService(cfg.SessionSecret, cfg.SessionIssuer),
		APIKey:          NewAPIKeyService(db),
		WebhookEndpoint: endpoints,
		WebhookDelivery: deliveries,
		WebhookVerifier: NewWebhookVerifier(endpoints, cfg.WebhookDefaultSecret, cfg.TimestampTolerance),
		PasswordReset:   NewPasswordResetService(db, hasher),
		Event:           NewEventService(endpoints, deliveries, tc),
	}
}
