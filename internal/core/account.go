package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/leyden/paysandbox/internal/crypto"
	"github.com/leyden/paysandbox/internal/model"
	"github.com/leyden/paysandbox/internal/platform"
)

// AccountService manages dashboard accounts. Passwords are user-chosen,
// so they always get the adaptive salted hash, never the fast lookup
// digest reserved for machine-generated secrets.
type AccountService struct {
	db     DB
	hasher *crypto.Hasher
}

// NewAccountService creates a new AccountService.
func NewAccountService(db DB, hasher *crypto.Hasher) *AccountService {
	return &AccountService{db: db, hasher: hasher}
}

// Create registers an account with the given email and password.
func (s *AccountService) Create(ctx context.Context, email, password string) (*model.Account, error) {
	hash, err := s.hasher.HashAndSalt(ctx, password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id := platform.NewID()
	_, err = s.db.Exec(ctx,
		`INSERT INTO accounts (id, email, password_hash, created_at, updated_at) VALUES ($1, $2, $3, now(), now())`,
		id, email, hash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}

	acct := &model.Account{ID: id, Email: email}
	err = s.db.QueryRow(ctx, `SELECT created_at, updated_at FROM accounts WHERE id = $1`, id).
		Scan(&acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get account timestamps: %w", err)
	}
	return acct, nil
}

const accountColumns = `id, email, password_hash, reset_token_hash, reset_token_expires_at, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.ResetTokenHash, &a.ResetTokenExpiresAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Authenticate verifies an email/password pair. Unknown email and wrong
// password both return ErrInvalidCredentials, so a caller cannot probe
// which addresses have accounts.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*model.Account, error) {
	acct, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up account: %w", err)
	}

	ok, err := s.hasher.Verify(ctx, password, acct.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return acct, nil
}

// GetByID retrieves an account by its ID.
func (s *AccountService) GetByID(ctx context.Context, id string) (*model.Account, error) {
	acct, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return acct, nil
}

// GetByEmail retrieves an account by its email address.
func (s *AccountService) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	acct, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return acct, nil
}

// HashPassword produces the adaptive hash of a new password. Used by the
// reset-confirm path, which hands the hash to the reset service so that
// acceptance and replacement happen in one statement.
func (s *AccountService) HashPassword(ctx context.Context, password string) (string, error) {
	hash, err := s.hasher.HashAndSalt(ctx, password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// ChangePassword sets a new password for an authenticated account.
func (s *AccountService) ChangePassword(ctx context.Context, id, newPassword string) error {
	hash, err := s.hasher.HashAndSalt(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE accounts SET password_hash = $1, updated_at = now() WHERE id = $2`,
		hash, id,
	)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
