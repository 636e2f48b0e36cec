package model

import "time"

// Account is a dashboard owner. The reset-token pair lives inline on the
// row; at most one live token exists per account, and a consume clears
// both fields in the same statement that accepts the token.
type Account struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	ResetTokenHash      *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
