package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/leyden/paysandbox/internal/model"
	"github.com/leyden/paysandbox/internal/platform"
)

// WebhookDeliveryService records outbound delivery attempts. Rows are
// created pending when an event fans out and updated from the delivery
// activity as attempts run.
type WebhookDeliveryService struct {
	db DB
}

// NewWebhookDeliveryService creates a new WebhookDeliveryService.
func NewWebhookDeliveryService(db DB) *WebhookDeliveryService {
	return &WebhookDeliveryService{db: db}
}

const deliveryColumns = `id, endpoint_id, event_type, payload, status, attempts, last_error, delivered_at, created_at`

func scanDelivery(row pgx.Row) (*model.WebhookDelivery, error) {
	var d model.WebhookDelivery
	err := row.Scan(&d.ID, &d.EndpointID, &d.EventType, &d.Payload, &d.Status, &d.Attempts, &d.LastError, &d.DeliveredAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a pending delivery for the exact payload bytes that will
// be signed and sent.
func (s *WebhookDeliveryService) Create(ctx context.Context, endpointID, eventType string, payload []byte) (*model.WebhookDelivery, error) {
	id := platform.NewName("dlv_")
	row := s.db.QueryRow(ctx,
		`INSERT INTO webhook_deliveries (id, endpoint_id, event_type, payload, status, attempts, last_error, created_at)
		 VALUES ($1, $2, $3, $4, $5, 0, '', now())
		 RETURNING `+deliveryColumns,
		id, endpointID, eventType, payload, model.DeliveryPending,
	)
	d, err := scanDelivery(row)
	if err != nil {
		return nil, fmt.Errorf("insert webhook delivery: %w", err)
	}
	return d, nil
}

// GetByID retrieves a delivery record.
func (s *WebhookDeliveryService) GetByID(ctx context.Context, id string) (*model.WebhookDelivery, error) {
	d, err := scanDelivery(s.db.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get webhook delivery: %w", err)
	}
	return d, nil
}

// ListByEndpoint returns the most recent deliveries for an endpoint.
func (s *WebhookDeliveryService) ListByEndpoint(ctx context.Context, endpointID string, limit int) ([]model.WebhookDelivery, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+deliveryColumns+` FROM webhook_deliveries
		 WHERE endpoint_id = $1 ORDER BY created_at DESC LIMIT $2`,
		endpointID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list webhook deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []model.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook delivery: %w", err)
		}
		deliveries = append(deliveries, *d)
	}
	return deliveries, rows.Err()
}

// MarkDelivered records a successful attempt.
func (s *WebhookDeliveryService) MarkDelivered(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE webhook_deliveries SET
			status = $2,
			attempts = attempts + 1,
			last_error = '',
			delivered_at = now()
		 WHERE id = $1`,
		id, model.DeliveryDelivered,
	)
	if err != nil {
		return fmt.Errorf("mark delivery delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed records a failed attempt. A later attempt can still flip the
// row to delivered.
func (s *WebhookDeliveryService) MarkFailed(ctx context.Context, id, lastError string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE webhook_deliveries SET
			status = $2,
			attempts = attempts + 1,
			last_error = $3
		 WHERE id = $1`,
		id, model.DeliveryFailed, lastError,
	)
	if err != nil {
		return fmt.Errorf("mark delivery failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
