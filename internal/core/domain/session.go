package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is what a successful login, register, or refresh hands back to the
// dashboard. The refresh token is shown only here; the store keeps its hash.
type Session struct {
	ID               uuid.UUID `json:"session_id"`
	UserID           uuid.UUID `json:"user_id"`
	MerchantID       uuid.UUID `json:"merchant_id"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	IssuedAt         time.Time `json:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// SessionRecord is the persisted side of a session.
type SessionRecord struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	MerchantID uuid.UUID
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

// IsLive reports whether the session is neither revoked nor past its expiry.
func (s *SessionRecord) IsLive(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// RefreshToken is a single-use refresh credential. ConsumedAt is set when
// it is exchanged; presenting a consumed token again signals theft.
type RefreshToken struct {
	Hash       string
	SessionID  uuid.UUID
	ExpiresAt  time.Time
	CreatedAt  time.Time
	ConsumedAt *time.Time
}

// Principal is the identity an access token resolves to.
type Principal struct {
	UserID     uuid.UUID
	MerchantID uuid.UUID
	SessionID  uuid.UUID
	ExpiresAt  time.Time
}
