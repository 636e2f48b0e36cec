package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/leyden/paysandbox/internal/model"
	"github.com/leyden/paysandbox/internal/platform"
)

// EventService fans a sandbox event out to the owner's subscribed
// endpoints: one pending delivery row and one delivery workflow per
// endpoint, all sharing the exact payload bytes that get signed.
type EventService struct {
	endpoints  *WebhookEndpointService
	deliveries *WebhookDeliveryService
	tc         temporalclient.Client
}

// NewEventService creates a new EventService.
func NewEventService(endpoints *WebhookEndpointService, deliveries *WebhookDeliveryService, tc temporalclient.Client) *EventService {
	return &EventService{endpoints: endpoints, deliveries: deliveries, tc: tc}
}

// EventEnvelope is the wire shape of a delivered event. Receivers verify
// the signature over the serialized envelope byte for byte.
type EventEnvelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

// DeliverEventInput is the delivery workflow's input. Payload is carried
// through workflow history so retries sign the exact original bytes.
type DeliverEventInput struct {
	DeliveryID string `json:"delivery_id"`
	EndpointID string `json:"endpoint_id"`
	EventType  string `json:"event_type"`
	Payload    []byte `json:"payload"`
}

// EmitTestEvent builds an event envelope and enqueues one delivery per
// active endpoint of the owner subscribed to the event type. Returns the
// created delivery records; an owner with no matching endpoints gets an
// empty slice, not an error.
func (s *EventService) EmitTestEvent(ctx context.Context, ownerID, eventType string, data json.RawMessage) ([]model.WebhookDelivery, error) {
	if !model.ValidEventType(eventType) {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidArgument, eventType)
	}
	if len(data) == 0 {
		data = json.RawMessage(`{"test":true}`)
	}

	payload, err := json.Marshal(EventEnvelope{
		ID:        platform.NewName("evt_"),
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}

	endpoints, err := s.endpoints.ListActiveByOwnerAndEvent(ctx, ownerID, eventType)
	if err != nil {
		return nil, err
	}

	deliveries := make([]model.WebhookDelivery, 0, len(endpoints))
	for _, ep := range endpoints {
		d, err := s.deliveries.Create(ctx, ep.ID, eventType, payload)
		if err != nil {
			return nil, err
		}

		workflowID := fmt.Sprintf("deliver-%s", d.ID)
		_, err = s.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: "sandbox-tasks",
		}, "DeliverEventWorkflow", DeliverEventInput{
			DeliveryID: d.ID,
			EndpointID: ep.ID,
			EventType:  eventType,
			Payload:    payload,
		})
		if err != nil {
			return nil, fmt.Errorf("start DeliverEventWorkflow: %w", err)
		}

		deliveries = append(deliveries, *d)
	}

	return deliveries, nil
}
