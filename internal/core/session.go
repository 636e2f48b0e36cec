package core

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/leyden/paysandbox/internal/model"
)

// Dashboard sessions last a day; re-login is cheap.
const sessionTTL = 24 * time.Hour

// SessionService issues and validates the signed dashboard session
// tokens. These are browser-session credentials for account owners and
// entirely separate from API keys.
type SessionService struct {
	secret []byte
	issuer string
}

// NewSessionService creates a new SessionService.
func NewSessionService(secret, issuer string) *SessionService {
	return &SessionService{secret: []byte(secret), issuer: issuer}
}

// SessionClaims are the claims carried by a dashboard session token.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issue creates a signed session token for the account.
func (s *SessionService) Issue(acct *model.Account) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Email: acct.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token, returning its claims.
func (s *SessionService) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("session token missing subject")
	}
	return claims, nil
}
