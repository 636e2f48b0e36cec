package core

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/leyden/paysandbox/internal/crypto"
)

// DefaultTimestampTolerance is the replay window around "now" within
// which a timestamped signed payload is accepted. Anything older, or
// implausibly future-dated, is rejected.
const DefaultTimestampTolerance = 300 * time.Second

// Header names for the webhook signature scheme. The delivery activity
// sets them on outbound requests; the verify endpoint reads them back.
const (
	SignatureHeader = "x-sandbox-signature"
	TimestampHeader = "x-sandbox-timestamp"
)

// WebhookVerifier proves that an inbound webhook call, or an outbound
// delivery claim, originates from the party holding the shared secret and
// is not a replay. It owns no endpoint data; it only resolves secrets
// through the endpoint service.
type WebhookVerifier struct {
	endpoints     *WebhookEndpointService
	defaultSecret []byte
	tolerance     time.Duration

	now func() time.Time
}

// NewWebhookVerifier creates a verifier. defaultSecret backs sandbox
// flows with no registered endpoint and may be empty; tolerance <= 0
// selects DefaultTimestampTolerance.
func NewWebhookVerifier(endpoints *WebhookEndpointService, defaultSecret string, tolerance time.Duration) *WebhookVerifier {
	if tolerance <= 0 {
		tolerance = DefaultTimestampTolerance
	}
	var secret []byte
	if defaultSecret != "" {
		secret = []byte(defaultSecret)
	}
	return &WebhookVerifier{
		endpoints:     endpoints,
		defaultSecret: secret,
		tolerance:     tolerance,
		now:           time.Now,
	}
}

// ResolveSecret returns the signing secret for the given endpoint, or the
// process-wide default when endpointID is empty. The endpoint must belong
// to ownerID; a foreign endpoint resolves like a missing one, so callers
// cannot probe other owners' endpoints. A missing secret is a
// configuration problem (ErrWebhookSecretMissing), deliberately distinct
// from a signature mismatch.
func (v *WebhookVerifier) ResolveSecret(ctx context.Context, ownerID, endpointID string) ([]byte, error) {
	if endpointID == "" {
		if len(v.defaultSecret) == 0 {
			return nil, ErrWebhookSecretMissing
		}
		return v.defaultSecret, nil
	}

	ep, err := v.endpoints.GetByID(ctx, endpointID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrWebhookSecretMissing
		}
		return nil, err
	}
	if ep.OwnerID != ownerID {
		return nil, ErrWebhookSecretMissing
	}
	secret, err := v.endpoints.DecryptSecret(ep)
	if err != nil {
		return nil, ErrWebhookSecretMissing
	}
	return secret, nil
}

// VerifyInbound checks a received payload against its signature header.
// Checks run cheapest first: header presence, then the timestamp window,
// then the HMAC itself. rawPayload must be the exact bytes as
// transmitted; re-serializing the body changes key order and whitespace
// and silently breaks the signature.
func (v *WebhookVerifier) VerifyInbound(rawPayload []byte, signatureHeader, timestampHeader string, secret []byte) error {
	if signatureHeader == "" {
		return ErrSignatureRequired
	}

	if timestampHeader != "" {
		ts, err := strconv.ParseInt(timestampHeader, 10, 64)
		if err != nil {
			// An unparseable timestamp fails the replay check rather
			// than skipping it.
			return ErrTimestampExpired
		}
		delta := v.now().Unix() - ts
		if delta < 0 {
			delta = -delta
		}
		// The window is inclusive: exactly tolerance seconds of skew
		// still passes.
		if delta > int64(v.tolerance/time.Second) {
			return ErrTimestampExpired
		}
	}

	if !crypto.VerifySignature(rawPayload, secret, signatureHeader) {
		return ErrInvalidSignature
	}
	return nil
}

// SignOutbound computes the signature header for a payload this system
// delivers to a third party. It is the same HMAC the inbound path
// verifies, so a receiver can check deliveries symmetrically.
func (v *WebhookVerifier) SignOutbound(payload, secret []byte) string {
	return crypto.Sign(payload, secret)
}
