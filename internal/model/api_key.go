package model

import "time"

// API key types. The type determines the public-key prefix and is
// informative only; authorization always comes from permissions.
const (
	KeyTypePublishable = "publishable"
	KeyTypeSecret      = "secret"
	KeyTypeTest        = "test"
)

// APIKey represents a credential for acting on an owner's sandbox data.
// SecretHash is the lookup digest of the plaintext secret; the plaintext
// exists only in the issue and rotate responses.
type APIKey struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	PublicKey    string          `json:"public_key"`
	SecretHash   string          `json:"-"`
	KeyType      string          `json:"key_type"`
	Permissions  []string        `json:"permissions"`
	IsActive     bool            `json:"is_active"`
	RevokedAt    *time.Time      `json:"revoked_at,omitempty"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	Usage        KeyUsage        `json:"usage"`
	Restrictions KeyRestrictions `json:"restrictions"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsRevoked reports whether the key has been revoked. A revoked key is
// invalid no matter what IsActive or ExpiresAt say.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// KeyUsage counts requests made with a key. Counters are incremented
// atomically in the store, never read-modify-write in memory.
type KeyUsage struct {
	TotalRequests      int64      `json:"total_requests"`
	SuccessfulRequests int64      `json:"successful_requests"`
	FailedRequests     int64      `json:"failed_requests"`
	LastRequestAt      *time.Time `json:"last_request_at,omitempty"`
}

// KeyRestrictions narrows where a key may be used from and which endpoints
// it may call. Empty collections impose no restriction.
type KeyRestrictions struct {
	IPAllowlist      []string  `json:"ip_allowlist"`
	RateLimit        RateLimit `json:"rate_limit"`
	AllowedEndpoints []string  `json:"allowed_endpoints"`
	BlockedEndpoints []string  `json:"blocked_endpoints"`
}

// RateLimit is policy data read by the gateway; enforcement happens there,
// not in this core. Zero means unlimited.
type RateLimit struct {
	PerMinute int `json:"per_minute"`
	PerHour   int `json:"per_hour"`
	PerDay    int `json:"per_day"`
}
