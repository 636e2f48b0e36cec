package crypto

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

const (
	argonMemory      = 64 * 1024
	argonIterations  = 3
	argonParallelism = 4
	argonSaltLength  = 16
	argonKeyLength   = 32
)

// Hasher computes and verifies argon2id hashes with a hard cap on how many
// run at once. A single argon2id call pins a core and ~64 MiB, so letting
// every concurrent request hash at will is a denial-of-service vector; the
// semaphore keeps the worst case bounded.
type Hasher struct {
	sem *semaphore.Weighted
}

// NewHasher returns a Hasher that admits at most maxConcurrent hashing
// operations at a time.
func NewHasher(maxConcurrent int64) *Hasher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Hasher{sem: semaphore.NewWeighted(maxConcurrent)}
}

// HashAndSalt derives an argon2id hash of secret under a fresh random salt
// and returns it in PHC format: $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>.
// Cost parameters travel inside the encoding, so stored hashes stay
// verifiable across future cost upgrades.
func (h *Hasher) HashAndSalt(ctx context.Context, secret string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.sem.Release(1)

	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(secret), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// Verify checks secret against a PHC-format argon2id hash using the cost
// parameters stored in the hash itself. Malformed or unsupported encodings
// verify false instead of erroring; the only error is cancellation while
// waiting for a hashing slot.
func (h *Hasher) Verify(ctx context.Context, secret, encoded string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.sem.Release(1)
	return verifyArgon2(secret, encoded), nil
}

// verifyArgon2 checks a secret against a PHC-format argon2id hash.
// Format: $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
func verifyArgon2(secret, hash string) bool {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	// Parse parameters from "m=65536,t=3,p=4"
	paramParts := strings.Split(parts[3], ",")
	if len(paramParts) != 3 {
		return false
	}

	memory, err := parseParam(paramParts[0], "m=")
	if err != nil {
		return false
	}
	iterations, err := parseParam(paramParts[1], "t=")
	if err != nil {
		return false
	}
	parallelism, err := parseParam(paramParts[2], "p=")
	if err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(secret), salt, uint32(iterations), uint32(memory), uint8(parallelism), uint32(len(expectedHash)))
	return subtle.ConstantTimeCompare(computed, expectedHash) == 1
}

func parseParam(s, prefix string) (int, error) {
	if !strings.HasPrefix(s, prefix) {
		return 0, fmt.Errorf("missing prefix %s", prefix)
	}
	return strconv.Atoi(s[len(prefix):])
}
