package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/leyden/paysandbox/internal/crypto"
)

// Reset tokens live for one hour from the request.
const resetTokenTTL = time.Hour

const resetTokenPrefix = "rst_"

// PasswordResetService implements single-use, time-boxed account
// recovery. The token state machine is None -> Live -> (Consumed |
// Expired) -> None; only a fresh RequestReset re-enters Live, and it
// always clobbers the prior token.
type PasswordResetService struct {
	db     DB
	hasher *crypto.Hasher
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(db DB, hasher *crypto.Hasher) *PasswordResetService {
	return &PasswordResetService{db: db, hasher: hasher}
}

// RequestReset issues a fresh reset token for the account, overwriting
// any prior live token, and returns the plaintext exactly once. The
// caller owns out-of-band delivery. Storage holds only the adaptive hash.
func (s *PasswordResetService) RequestReset(ctx context.Context, accountID string) (string, error) {
	token, err := crypto.GenerateSecret(32, resetTokenPrefix)
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	hash, err := s.hasher.HashAndSalt(ctx, token)
	if err != nil {
		return "", fmt.Errorf("hash reset token: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE accounts SET reset_token_hash = $1, reset_token_expires_at = $2, updated_at = now() WHERE id = $3`,
		hash, time.Now().Add(resetTokenTTL), accountID,
	)
	if err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", ErrNotFound
	}
	return token, nil
}

// VerifyToken checks a candidate token without consuming it. An unknown
// account, an account with no live token, and a hash mismatch all return
// ErrResetTokenInvalid; only a token past its expiry returns
// ErrResetTokenExpired.
func (s *PasswordResetService) VerifyToken(ctx context.Context, accountID, token string) error {
	var hash *string
	var expiresAt *time.Time
	err := s.db.QueryRow(ctx,
		`SELECT reset_token_hash, reset_token_expires_at FROM accounts WHERE id = $1`, accountID,
	).Scan(&hash, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("load reset token: %w", err)
	}

	if hash == nil || expiresAt == nil {
		return ErrResetTokenInvalid
	}
	if time.Now().After(*expiresAt) {
		return ErrResetTokenExpired
	}

	ok, err := s.hasher.Verify(ctx, token, *hash)
	if err != nil {
		return fmt.Errorf("verify reset token: %w", err)
	}
	if !ok {
		return ErrResetTokenInvalid
	}
	return nil
}

// Consume verifies the token and, in one statement, replaces the
// account's password hash and clears the token pair. The guard clauses in
// the UPDATE make acceptance and clearing atomic: two racing calls with
// the same token cannot both succeed, because whichever lands second
// finds the token fields already NULL.
func (s *PasswordResetService) Consume(ctx context.Context, accountID, token, newPasswordHash string) error {
	if err := s.VerifyToken(ctx, accountID, token); err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE accounts SET password_hash = $1, reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = now()
		 WHERE id = $2 AND reset_token_hash IS NOT NULL AND reset_token_expires_at > now()`,
		newPasswordHash, accountID,
	)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Lost a race: the token was consumed or swept between the
		// verify and the update.
		return ErrResetTokenInvalid
	}
	return nil
}

// SweepExpired clears every token pair past its expiry, whether or not
// anyone tried to use it, and returns how many rows were cleared. Run
// periodically by the worker.
func (s *PasswordResetService) SweepExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE accounts SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = now()
		 WHERE reset_token_expires_at IS NOT NULL AND reset_token_expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("sweep expired reset tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
