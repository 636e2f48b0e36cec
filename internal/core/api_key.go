package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/leyden/paysandbox/internal/crypto"
	"github.com/leyden/paysandbox/internal/model"
	"github.com/leyden/paysandbox/internal/platform"
)

// Plaintext secrets carry this prefix so they are recognizable in transit
// and in accidental logs. The prefix is shape information only.
const secretPrefix = "sec_"

// APIKeyService manages the full credential lifecycle against the sandbox
// database. Plaintext secrets exist only in the return values of Issue and
// RotateSecret; storage holds the lookup digest.
type APIKeyService struct {
	db DB
}

// NewAPIKeyService creates a new APIKeyService.
func NewAPIKeyService(db DB) *APIKeyService {
	return &APIKeyService{db: db}
}

// publicKeyPrefix maps a key type to the prefix its public key carries.
// The prefix identifies the credential shape and is never trusted for
// authorization decisions.
func publicKeyPrefix(keyType string) (string, error) {
	switch keyType {
	case model.KeyTypePublishable:
		return "pk_test_", nil
	case model.KeyTypeSecret:
		return "sk_test_", nil
	case model.KeyTypeTest:
		return "tlsk_", nil
	default:
		return "", fmt.Errorf("%w: unknown key type %q", ErrInvalidArgument, keyType)
	}
}

// Issue creates a credential of the given type and returns it along with
// the plaintext secret. This is the only code path that ever sees the
// plaintext; it must be shown to the owner exactly once.
func (s *APIKeyService) Issue(ctx context.Context, ownerID, keyType string, permissions []string, expiresAt *time.Time) (*model.APIKey, string, error) {
	prefix, err := publicKeyPrefix(keyType)
	if err != nil {
		return nil, "", err
	}

	publicKey, err := crypto.GenerateSecret(16, prefix)
	if err != nil {
		return nil, "", fmt.Errorf("generate public key: %w", err)
	}
	secret, err := crypto.GenerateSecret(32, secretPrefix)
	if err != nil {
		return nil, "", fmt.Errorf("generate secret: %w", err)
	}

	if permissions == nil {
		permissions = []string{model.ScopeAll}
	}
	for _, p := range permissions {
		if !model.ValidScope(p) {
			return nil, "", fmt.Errorf("%w: unknown scope %q", ErrInvalidArgument, p)
		}
	}

	id := platform.NewID()
	_, err = s.db.Exec(ctx,
		`INSERT INTO api_keys (id, owner_id, public_key, secret_hash, key_type, permissions, is_active, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, true, $7, now(), now())`,
		id, ownerID, publicKey, crypto.LookupHash(secret), keyType, permissions, expiresAt,
	)
	if err != nil {
		return nil, "", fmt.Errorf("insert api key: %w", err)
	}

	key := &model.APIKey{
		ID:          id,
		OwnerID:     ownerID,
		PublicKey:   publicKey,
		KeyType:     keyType,
		Permissions: permissions,
		IsActive:    true,
		ExpiresAt:   expiresAt,
	}
	// Fetch the server-generated timestamps.
	err = s.db.QueryRow(ctx, `SELECT created_at, updated_at FROM api_keys WHERE id = $1`, id).
		Scan(&key.CreatedAt, &key.UpdatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("get api key timestamps: %w", err)
	}

	return key, secret, nil
}

// RotateSecret replaces a credential's secret and returns the new
// plaintext. The previous secret fails validation from the moment this
// call returns; there is no grace overlap.
func (s *APIKeyService) RotateSecret(ctx context.Context, id string) (string, error) {
	secret, err := crypto.GenerateSecret(32, secretPrefix)
	if err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE api_keys SET secret_hash = $1, updated_at = now() WHERE id = $2 AND revoked_at IS NULL`,
		crypto.LookupHash(secret), id,
	)
	if err != nil {
		return "", fmt.Errorf("rotate api key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("api key %s not found or revoked", id)
	}
	return secret, nil
}

const apiKeyColumns = `id, owner_id, public_key, secret_hash, key_type, permissions, is_active, revoked_at, expires_at,
	total_requests, successful_requests, failed_requests, last_request_at,
	ip_allowlist, rate_per_minute, rate_per_hour, rate_per_day, allowed_endpoints, blocked_endpoints,
	created_at, updated_at`

func scanAPIKey(row pgx.Row) (*model.APIKey, error) {
	var k model.APIKey
	err := row.Scan(&k.ID, &k.OwnerID, &k.PublicKey, &k.SecretHash, &k.KeyType, &k.Permissions, &k.IsActive, &k.RevokedAt, &k.ExpiresAt,
		&k.Usage.TotalRequests, &k.Usage.SuccessfulRequests, &k.Usage.FailedRequests, &k.Usage.LastRequestAt,
		&k.Restrictions.IPAllowlist, &k.Restrictions.RateLimit.PerMinute, &k.Restrictions.RateLimit.PerHour, &k.Restrictions.RateLimit.PerDay,
		&k.Restrictions.AllowedEndpoints, &k.Restrictions.BlockedEndpoints,
		&k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// Validate authenticates a (public key, plaintext secret) pair. Every
// rejection returns an *AuthError whose client-facing shape is identical
// for a missing key, a revoked, inactive, or expired key, and a wrong
// secret; the specific cause travels only in AuthError.Reason. Non-nil
// errors that are not *AuthError are storage failures.
func (s *APIKeyService) Validate(ctx context.Context, publicKey, plaintextSecret string) (*model.APIKey, error) {
	key, err := scanAPIKey(s.db.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE public_key = $1`, publicKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invalidKey(ReasonNotFound)
		}
		return nil, fmt.Errorf("look up api key: %w", err)
	}

	if key.IsRevoked() {
		return nil, invalidKey(CodeRevoked)
	}
	if !key.IsActive {
		return nil, invalidKey(ReasonInactive)
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
		return nil, invalidKey(CodeExpired)
	}
	if !crypto.ConstantTimeEqual([]byte(crypto.LookupHash(plaintextSecret)), []byte(key.SecretHash)) {
		return nil, invalidKey(CodeInvalidSecret)
	}

	return key, nil
}

// CheckPermission reports whether the key holds every required scope.
// An empty requirement always passes; holding the wildcard scope
// satisfies any requirement.
func (s *APIKeyService) CheckPermission(key *model.APIKey, required []string) bool {
	if len(required) == 0 {
		return true
	}
	held := make(map[string]bool, len(key.Permissions))
	for _, p := range key.Permissions {
		held[p] = true
	}
	if held[model.ScopeAll] {
		return true
	}
	for _, r := range required {
		if !held[r] {
			return false
		}
	}
	return true
}

// CheckEndpointAllowed reports whether the key may call the endpoint.
// The block list always wins; a non-empty allow list is exhaustive; an
// empty allow list passes everything not blocked.
func (s *APIKeyService) CheckEndpointAllowed(key *model.APIKey, endpoint string) bool {
	for _, blocked := range key.Restrictions.BlockedEndpoints {
		if blocked == endpoint {
			return false
		}
	}
	if len(key.Restrictions.AllowedEndpoints) == 0 {
		return true
	}
	for _, allowed := range key.Restrictions.AllowedEndpoints {
		if allowed == endpoint {
			return true
		}
	}
	return false
}

// CheckIPAllowed reports whether the key may be used from ip. An empty
// allowlist permits every address.
func (s *APIKeyService) CheckIPAllowed(key *model.APIKey, ip string) bool {
	if len(key.Restrictions.IPAllowlist) == 0 {
		return true
	}
	for _, allowed := range key.Restrictions.IPAllowlist {
		if allowed == ip {
			return true
		}
	}
	return false
}

// RecordUsage increments the key's counters in a single statement so that
// concurrent requests against the same key never lose updates.
func (s *APIKeyService) RecordUsage(ctx context.Context, id string, success bool) error {
	_, err := s.db.Exec(ctx,
		`UPDATE api_keys SET
			total_requests = total_requests + 1,
			successful_requests = successful_requests + (CASE WHEN $2 THEN 1 ELSE 0 END),
			failed_requests = failed_requests + (CASE WHEN $2 THEN 0 ELSE 1 END),
			last_request_at = now()
		 WHERE id = $1`,
		id, success,
	)
	if err != nil {
		return fmt.Errorf("record api key usage: %w", err)
	}
	return nil
}

// GetByID retrieves a credential by its ID.
func (s *APIKeyService) GetByID(ctx context.Context, id string) (*model.APIKey, error) {
	key, err := scanAPIKey(s.db.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key %s: %w", id, err)
	}
	return key, nil
}

// ListByOwner retrieves an owner's credentials with cursor-based
// pagination.
func (s *APIKeyService) ListByOwner(ctx context.Context, ownerID string, limit int, cursor string) ([]model.APIKey, bool, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE owner_id = $1`
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
		return nil, false, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []model.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, *key)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate api keys: %w", err)
	}

	hasMore := len(keys) > limit
	if hasMore {
		keys = keys[:limit]
	}
	return keys, hasMore, nil
}

// UpdatePermissions replaces the key's scope set.
func (s *APIKeyService) UpdatePermissions(ctx context.Context, id string, permissions []string) (*model.APIKey, error) {
	for _, p := range permissions {
		if !model.ValidScope(p) {
			return nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidArgument, p)
		}
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE api_keys SET permissions = $1, updated_at = now() WHERE id = $2 AND revoked_at IS NULL`,
		permissions, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update api key permissions %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("api key %s not found or revoked", id)
	}
	return s.GetByID(ctx, id)
}

// UpdateRestrictions replaces the key's IP, endpoint, and rate-limit
// restrictions wholesale.
func (s *APIKeyService) UpdateRestrictions(ctx context.Context, id string, r model.KeyRestrictions) (*model.APIKey, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE api_keys SET ip_allowlist = $1, rate_per_minute = $2, rate_per_hour = $3, rate_per_day = $4,
			allowed_endpoints = $5, blocked_endpoints = $6, updated_at = now()
		 WHERE id = $7 AND revoked_at IS NULL`,
		r.IPAllowlist, r.RateLimit.PerMinute, r.RateLimit.PerHour, r.RateLimit.PerDay,
		r.AllowedEndpoints, r.BlockedEndpoints, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update api key restrictions %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("api key %s not found or revoked", id)
	}
	return s.GetByID(ctx, id)
}

// SetActive toggles the key without revoking it. Deactivation is the
// reversible "pause" state; revocation is the one-way one.
func (s *APIKeyService) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE api_keys SET is_active = $1, updated_at = now() WHERE id = $2 AND revoked_at IS NULL`,
		active, id,
	)
	if err != nil {
		return fmt.Errorf("set api key active %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("api key %s not found or revoked", id)
	}
	return nil
}

// Revoke soft-deletes a credential. Revocation clears is_active in the
// same statement; the key fails validation immediately and stays revoked
// until an explicit Reactivate.
func (s *APIKeyService) Revoke(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE api_keys SET revoked_at = now(), is_active = false, updated_at = now() WHERE id = $1 AND revoked_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("revoke api key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: api key %s not found or already revoked", ErrInvalidArgument, id)
	}
	return nil
}

// Reactivate reverses a revocation. Only an explicit owner action reaches
// this path.
func (s *APIKeyService) Reactivate(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE api_keys SET revoked_at = NULL, is_active = true, updated_at = now() WHERE id = $1 AND revoked_at IS NOT NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("reactivate api key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: api key %s not found or not revoked", ErrInvalidArgument, id)
	}
	return nil
}

// Delete removes a credential row entirely. Administrative use only;
// normal lifecycle ends at Revoke.
func (s *APIKeyService) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete api key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
