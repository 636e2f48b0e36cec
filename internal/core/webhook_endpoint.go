package core

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/leyden/paysandbox/internal/crypto"
	"github.com/leyden/paysandbox/internal/model"
	"github.com/leyden/paysandbox/internal/platform"
)

// Webhook signing secrets carry this prefix, mirroring what payment
// providers hand out, so integrators can recognize them on sight.
const webhookSecretPrefix = "whsec_"

// WebhookEndpointService manages owner-configured delivery targets.
// Signing secrets are sealed with AES-GCM under the process KEK before
// they touch the database; the plaintext is returned exactly once from
// Create and RotateSecret.
type WebhookEndpointService struct {
	db  DB
	kek []byte // 32-byte master key
}

// NewWebhookEndpointService creates a new WebhookEndpointService. kekHex
// is the hex-encoded process master key; an empty value disables secret
// storage and makes Create fail.
func NewWebhookEndpointService(db DB, kekHex string) *WebhookEndpointService {
	var kek []byte
	if kekHex != "" {
		kek, _ = hex.DecodeString(kekHex)
	}
	return &WebhookEndpointService{db: db, kek: kek}
}

// Create registers a delivery target. If secret is empty a fresh one is
// generated; either way the secret is set exactly once here and can only
// be replaced wholesale via RotateSecret. Returns the endpoint and the
// plaintext secret.
func (s *WebhookEndpointService) Create(ctx context.Context, ownerID, url string, events []string, secret string) (*model.WebhookEndpoint, string, error) {
	if s.kek == nil {
		return nil, "", fmt.Errorf("webhook secret encryption key not configured")
	}
	for _, ev := range events {
		if !model.ValidEventType(ev) {
			return nil, "", fmt.Errorf("%w: unknown event type %q", ErrInvalidArgument, ev)
		}
	}

	if secret == "" {
		var err error
		secret, err = crypto.GenerateSecret(32, webhookSecretPrefix)
		if err != nil {
			return nil, "", fmt.Errorf("generate webhook secret: %w", err)
		}
	}

	encrypted, err := crypto.Encrypt([]byte(secret), s.kek)
	if err != nil {
		return nil, "", fmt.Errorf("encrypt webhook secret: %w", err)
	}

	id := platform.NewID()
	_, err = s.db.Exec(ctx,
		`INSERT INTO webhook_endpoints (id, owner_id, url, secret_encrypted, subscribed_events, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, true, now(), now())`,
		id, ownerID, url, encrypted, events,
	)
	if err != nil {
		return nil, "", fmt.Errorf("insert webhook endpoint: %w", err)
	}

	ep := &model.WebhookEndpoint{
		ID:               id,
		OwnerID:          ownerID,
		URL:              url,
		SecretEncrypted:  encrypted,
		SubscribedEvents: events,
		IsActive:         true,
	}
	err = s.db.QueryRow(ctx, `SELECT created_at, updated_at FROM webhook_endpoints WHERE id = $1`, id).
		Scan(&ep.CreatedAt, &ep.UpdatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("get webhook endpoint timestamps: %w", err)
	}

	return ep, secret, nil
}

const webhookEndpointColumns = `id, owner_id, url, secret_encrypted, subscribed_events, is_active, created_at, updated_at`

func scanWebhookEndpoint(row pgx.Row) (*model.WebhookEndpoint, error) {
	var ep model.WebhookEndpoint
	err := row.Scan(&ep.ID, &ep.OwnerID, &ep.URL, &ep.SecretEncrypted, &ep.SubscribedEvents, &ep.IsActive, &ep.CreatedAt, &ep.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

// GetByID retrieves an endpoint by its ID.
func (s *WebhookEndpointService) GetByID(ctx context.Context, id string) (*model.WebhookEndpoint, error) {
	ep, err := scanWebhookEndpoint(s.db.QueryRow(ctx,
		`SELECT `+webhookEndpointColumns+` FROM webhook_endpoints WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get webhook endpoint %s: %w", id, err)
	}
	return ep, nil
}

// ListByOwner retrieves an owner's endpoints with cursor-based
// pagination.
func (s *WebhookEndpointService) ListByOwner(ctx context.Context, ownerID string, limit int, cursor string) ([]model.WebhookEndpoint, bool, error) {
	query := `SELECT ` + webhookEndpointColumns + ` FROM webhook_endpoints WHERE owner_id = $1`
	args := []any{ownerID}
	argIdx := 2

	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list webhook endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []model.WebhookEndpoint
	for rows.Next() {
		ep, err := scanWebhookEndpoint(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan webhook endpoint: %w", err)
		}
		endpoints = append(endpoints, *ep)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate webhook endpoints: %w", err)
	}

	hasMore := len(endpoints) > limit
	if hasMore {
		endpoints = endpoints[:limit]
	}
	return endpoints, hasMore, nil
}

// ListActiveByOwnerAndEvent retrieves the owner's active endpoints
// subscribed to the given event type. Used to fan out deliveries.
func (s *WebhookEndpointService) ListActiveByOwnerAndEvent(ctx context.Context, ownerID, eventType string) ([]model.WebhookEndpoint, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+webhookEndpointColumns+` FROM webhook_endpoints
		 WHERE owner_id = $1 AND is_active = true AND $2 = ANY(subscribed_events)`, ownerID, eventType)
	if err != nil {
		return nil, fmt.Errorf("list endpoints for event: %w", err)
	}
	defer rows.Close()

	var endpoints []model.WebhookEndpoint
	for rows.Next() {
		ep, err := scanWebhookEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook endpoint: %w", err)
		}
		endpoints = append(endpoints, *ep)
	}
	return endpoints, rows.Err()
}

// Update modifies the endpoint's URL, subscriptions, and active flag.
// The secret is deliberately untouchable here; use RotateSecret.
func (s *WebhookEndpointService) Update(ctx context.Context, id, url string, events []string, isActive bool) (*model.WebhookEndpoint, error) {
	for _, ev := range events {
		if !model.ValidEventType(ev) {
			return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidArgument, ev)
		}
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE webhook_endpoints SET url = $1, subscribed_events = $2, is_active = $3, updated_at = now() WHERE id = $4`,
		url, events, isActive, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update webhook endpoint %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.GetByID(ctx, id)
}

// RotateSecret replaces the endpoint's signing secret wholesale and
// returns the new plaintext. Deliveries signed with the old secret fail
// verification from this point on.
func (s *WebhookEndpointService) RotateSecret(ctx context.Context, id string) (string, error) {
	if s.kek == nil {
		return "", fmt.Errorf("webhook secret encryption key not configured")
	}
	secret, err := crypto.GenerateSecret(32, webhookSecretPrefix)
	if err != nil {
		return "", fmt.Errorf("generate webhook secret: %w", err)
	}
	encrypted, err := crypto.Encrypt([]byte(secret), s.kek)
	if err != nil {
		return "", fmt.Errorf("encrypt webhook secret: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE webhook_endpoints SET secret_encrypted = $1, updated_at = now() WHERE id = $2`,
		encrypted, id,
	)
	if err != nil {
		return "", fmt.Errorf("rotate webhook secret %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return "", ErrNotFound
	}
	return secret, nil
}

// Delete removes an endpoint.
func (s *WebhookEndpointService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM webhook_endpoints WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook endpoint %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DecryptSecret unseals the endpoint's signing secret for the verifier
// and the delivery worker. The plaintext never leaves the process.
func (s *WebhookEndpointService) DecryptSecret(ep *model.WebhookEndpoint) ([]byte, error) {
	if s.kek == nil {
		return nil, fmt.Errorf("webhook secret encryption key not configured")
	}
	secret, err := crypto.Decrypt(ep.SecretEncrypted, s.kek)
	if err != nil {
		return nil, fmt.Errorf("decrypt webhook secret for endpoint %s: %w", ep.ID, err)
	}
	return secret, nil
}
