package request

// CreateWebhookEndpoint holds the request body for registering an endpoint.
// Secret is optional; when empty the service generates one and returns the
// plaintext exactly once.
type CreateWebhookEndpoint struct {
	URL    string   `json:"url" validate:"required,url"`
	Events []string `json:"events" validate:"required,min=1"`
	Secret string   `json:"secret"`
}

// UpdateWebhookEndpoint holds the request body for patching an endpoint.
// Zero-value fields are left unchanged; the secret is never updatable here,
// only via rotate.
type UpdateWebhookEndpoint struct {
	URL      string   `json:"url" validate:"omitempty,url"`
	Events   []string `json:"events" validate:"omitempty,min=1"`
	IsActive *bool    `json:"is_active"`
}
