package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the persisted record behind an opaque refresh token. Only
// the SHA-256 of the token value is stored. Rotated records point at their
// successor through ReplacedBy, forming a chain per login.
type RefreshToken struct {
	ID          string     `json:"id" db:"id"`
	PrincipalID uuid.UUID  `json:"principal_id" db:"principal_id"`
	TokenHash   string     `json:"-" db:"token_hash"`
	ExpiresAt   time.Time  `json:"expires_at" db:"expires_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CreatedByIP string     `json:"created_by_ip" db:"created_by_ip"`
	UserAgent   string     `json:"user_agent" db:"user_agent"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	ReplacedBy  *string    `json:"replaced_by,omitempty" db:"replaced_by"`
}

// TableName returns the table name for the RefreshToken model
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// IsRevoked reports whether the token was revoked or already rotated
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil || t.ReplacedBy != nil
}

// IsRotated reports whether the token was redeemed for a successor
func (t *RefreshToken) IsRotated() bool {
	return t.ReplacedBy != nil
}

// IsExpired reports whether the token is past its expiry at now
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsActive reports whether the token can still be redeemed at now
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}
