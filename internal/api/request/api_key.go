package request

import "time"

// CreateAPIKey holds the request body for issuing an API key. Empty
// permissions default to full access at the service layer.
type CreateAPIKey struct {
	KeyType     string     `json:"key_type" validate:"required,oneof=publishable secret test"`
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// UpdateAPIKey holds the request body for patching an API key. Nil fields
// are left unchanged.
type UpdateAPIKey struct {
	Permissions  []string         `json:"permissions" validate:"omitempty,min=1"`
	Restrictions *KeyRestrictions `json:"restrictions"`
	IsActive     *bool            `json:"is_active"`
}

// KeyRestrictions mirrors the stored restriction policy. Empty collections
// impose no restriction.
type KeyRestrictions struct {
	IPAllowlist      []string  `json:"ip_allowlist"`
	RateLimit        RateLimit `json:"rate_limit"`
	AllowedEndpoints []string  `json:"allowed_endpoints"`
	BlockedEndpoints []string  `json:"blocked_endpoints"`
}

// RateLimit is policy data carried on a key for the gateway to enforce.
type RateLimit struct {
	PerMinute int `json:"per_minute" validate:"min=0"`
	PerHour   int `json:"per_hour" validate:"min=0"`
	PerDay    int `json:"per_day" validate:"min=0"`
}
