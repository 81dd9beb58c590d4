package domain

import (
	"fmt"
	"time"
)

// AccessToken is a bearer credential that resolves to a user identity
type AccessToken struct {
	ID        string
	UserID    string
	Name      string
	TokenHash string // Never store plaintext tokens
	CreatedAt time.Time
	ExpiresAt *time.Time
	RevokedAt *time.Time
}

// NewAccessToken creates a new AccessToken instance
func NewAccessToken(id, userID, name, tokenHash string, createdAt time.Time, expiresAt *time.Time) *AccessToken {
	return &AccessToken{
		ID:        id,
		UserID:    userID,
		Name:      name,
		TokenHash: tokenHash,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}
}

// IsRevoked returns true if the token has been revoked
func (a *AccessToken) IsRevoked() bool {
	return a.RevokedAt != nil
}

// IsExpired returns true if the token has an expiry at or before now
func (a *AccessToken) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && !now.Before(*a.ExpiresAt)
}

// ValidateAccessToken validates an AccessToken instance
func ValidateAccessToken(a *AccessToken) error {
	if a == nil {
		return fmt.Errorf("access token cannot be nil")
	}

	if a.ID == "" {
		return fmt.Errorf("access token ID is required")
	}

	if a.UserID == "" {
		return fmt.Errorf("access token UserID is required")
	}

	if a.Name == "" {
		return fmt.Errorf("access token Name is required")
	}

	if a.TokenHash == "" {
		return fmt.Errorf("access token TokenHash is required")
	}

	return nil
}
