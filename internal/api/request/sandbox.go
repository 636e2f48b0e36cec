package request

import "encoding/json"

// TestEvent holds the request body for emitting a test event to the
// caller's subscribed endpoints. A nil payload gets a generated stub.
type TestEvent struct {
	EventType string          `json:"event_type" validate:"required"`
	Payload   json.RawMessage `json:"payload"`
}
