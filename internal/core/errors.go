package core

import "errors"

// Error codes surfaced to the HTTP layer. Credential rejections always
// present CodeInvalidAPIKey to clients; the finer-grained codes exist as
// internal reasons and for logging.
const (
	CodeInvalidAPIKey           = "INVALID_API_KEY"
	CodeInvalidSecret           = "INVALID_SECRET"
	CodeExpired                 = "EXPIRED"
	CodeRevoked                 = "REVOKED"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeSignatureRequired       = "SIGNATURE_REQUIRED"
	CodeInvalidSignature        = "INVALID_SIGNATURE"
	CodeTimestampExpired        = "TIMESTAMP_EXPIRED"
	CodeWebhookSecretMissing    = "WEBHOOK_SECRET_MISSING"
	CodeResetTokenInvalid       = "RESET_TOKEN_INVALID"
	CodeResetTokenExpired       = "RESET_TOKEN_EXPIRED"
)

// Internal rejection reasons that have no code of their own. They collapse
// into CodeInvalidAPIKey before anything reaches a client.
const (
	ReasonNotFound = "NOT_FOUND"
	ReasonInactive = "INACTIVE"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidArgument wraps caller mistakes the struct-tag validation layer
// cannot catch, like an unknown scope or event type. The HTTP layer maps
// it to 400.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrInvalidCredentials is returned for any dashboard login failure.
// Unknown email and wrong password produce this same value, so callers
// cannot tell whether the account exists.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthError is the single rejection type for API key validation. Its
// Error string and Code are identical for every rejection so that callers
// cannot distinguish a missing key from a revoked one or a wrong secret.
// Reason carries the real cause and is for logs and metrics only; it must
// never be serialized into a response.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "invalid API key"
}

// Code returns the client-facing error code, the same for all reasons.
func (e *AuthError) Code() string {
	return CodeInvalidAPIKey
}

func invalidKey(reason string) *AuthError {
	return &AuthError{Reason: reason}
}

// WebhookError is a webhook verification failure. Unlike credential
// rejections these codes are client-facing: a caller debugging its
// signing code needs to know which check failed.
type WebhookError struct {
	ErrCode string
	message string
}

func (e *WebhookError) Error() string {
	return e.message
}

// Code returns the client-facing error code.
func (e *WebhookError) Code() string {
	return e.ErrCode
}

// Webhook verification failures, in check order.
var (
	ErrSignatureRequired    = &WebhookError{ErrCode: CodeSignatureRequired, message: "signature header required"}
	ErrTimestampExpired     = &WebhookError{ErrCode: CodeTimestampExpired, message: "timestamp outside tolerance window"}
	ErrInvalidSignature     = &WebhookError{ErrCode: CodeInvalidSignature, message: "signature verification failed"}
	ErrWebhookSecretMissing = &WebhookError{ErrCode: CodeWebhookSecretMissing, message: "no webhook secret configured"}
)

// ResetError is a password-reset token failure. An unknown account, an
// account with no live token, and a token hash mismatch all produce
// ErrResetTokenInvalid; only a token known to have expired is reported
// separately.
type ResetError struct {
	ErrCode string
	message string
}

func (e *ResetError) Error() string {
	return e.message
}

// Code returns the client-facing error code.
func (e *ResetError) Code() string {
	return e.ErrCode
}

var (
	ErrResetTokenInvalid = &ResetError{ErrCode: CodeResetTokenInvalid, message: "invalid reset token"}
	ErrResetTokenExpired = &ResetError{ErrCode: CodeResetTokenExpired, message: "reset token expired"}
)
