package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// GenerateSecret draws byteLength bytes from the system CSPRNG and returns
// them URL-safe base64 encoded with the given prefix prepended. The prefix
// identifies the credential type from its shape alone and is never part of
// the entropy. An entropy source failure is returned, never papered over.
func GenerateSecret(byteLength int, prefix string) (string, error) {
	raw := make([]byte, byteLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate secret material: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// LookupHash computes the SHA-256 hex digest used to store and look up
// machine-generated secrets by exact match. It is deterministic on purpose;
// it must only ever be applied to high-entropy generated values, never to
// anything a user chose.
func LookupHash(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("%x", h)
}

// ConstantTimeEqual reports whether a and b are equal without leaking the
// position of the first differing byte. Every secret and signature
// comparison routes through here.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Sign computes the HMAC-SHA-256 of payload under secret, hex encoded.
// The payload must be the exact bytes transmitted; re-serializing JSON
// changes key order and whitespace and breaks signature equality.
func Sign(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the HMAC of payload under secret and compares
// it in constant time against the presented hex signature.
func VerifySignature(payload, secret []byte, signature string) bool {
	presented, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return ConstantTimeEqual(mac.Sum(nil), presented)
}
