package model

// Permission scopes an API key may hold. Checked by subset containment;
// ScopeAll satisfies any requirement.
const (
	ScopeTransactionsRead  = "transactions:read"
	ScopeTransactionsWrite = "transactions:write"
	ScopeMerchantsRead     = "merchants:read"
	ScopeMerchantsWrite    = "merchants:write"
	ScopeWebhooksRead      = "webhooks:read"
	ScopeWebhooksWrite     = "webhooks:write"
	ScopeAnalyticsRead     = "analytics:read"
	ScopeAll               = "*:*"
)

// AllScopes lists every grantable scope, wildcard included.
var AllScopes = []string{
	ScopeTransactionsRead,
	ScopeTransactionsWrite,
	ScopeMerchantsRead,
	ScopeMerchantsWrite,
	ScopeWebhooksRead,
	ScopeWebhooksWrite,
	ScopeAnalyticsRead,
	ScopeAll,
}

// ValidScope reports whether s is a known scope.
func ValidScope(s string) bool {
	for _, known := range AllScopes {
		if s == known {
			return true
		}
	}
	return false
}
