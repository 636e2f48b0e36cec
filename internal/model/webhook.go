package model

import "time"

// Event types an endpoint can subscribe to.
const (
	EventTransactionCreated   = "transaction.created"
	EventTransactionUpdated   = "transaction.updated"
	EventTransactionCompleted = "transaction.completed"
	EventTransactionFailed    = "transaction.failed"
	EventSubscriptionCreated  = "subscription.created"
	EventSubscriptionCanceled = "subscription.canceled"
	EventMerchantUpdated      = "merchant.updated"
	EventTestPing             = "test.ping"
)

// AllEventTypes lists every deliverable event type.
var AllEventTypes = []string{
	EventTransactionCreated,
	EventTransactionUpdated,
	EventTransactionCompleted,
	EventTransactionFailed,
	EventSubscriptionCreated,
	EventSubscriptionCanceled,
	EventMerchantUpdated,
	EventTestPing,
}

// ValidEventType reports whether s is a known event type.
func ValidEventType(s string) bool {
	for _, known := range AllEventTypes {
		if s == known {
			return true
		}
	}
	return false
}

// WebhookEndpoint is an owner-configured delivery target. SecretEncrypted
// holds the shared signing secret sealed under the process KEK; the
// plaintext is surfaced only when the endpoint is created or rotated.
type WebhookEndpoint struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	URL              string    `json:"url"`
	SecretEncrypted  string    `json:"-"`
	SubscribedEvents []string  `json:"subscribed_events"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SubscribedTo reports whether the endpoint wants the given event type.
func (e *WebhookEndpoint) SubscribedTo(eventType string) bool {
	for _, ev := range e.SubscribedEvents {
		if ev == eventType {
			return true
		}
	}
	return false
}

// Webhook delivery statuses.
const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// WebhookDelivery records one outbound delivery attempt chain. Payload is
// the exact byte sequence that was signed and sent.
type WebhookDelivery struct {
	ID          string     `json:"id"`
	EndpointID  string     `json:"endpoint_id"`
	EventType   string     `json:"event_type"`
	Payload     []byte     `json:"-"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
