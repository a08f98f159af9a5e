package domain

import (
	"time"

	"github.com/google/uuid"
)

// MerchantStatus represents the state of a merchant account.
type MerchantStatus string

const (
	MerchantStatusActive      MerchantStatus = "ACTIVE"
	MerchantStatusSuspended   MerchantStatus = "SUSPENDED"
	MerchantStatusDeactivated MerchantStatus = "DEACTIVATED"
)

// Merchant owns exactly one API key and one active signing secret.
// The API key is stable for the merchant's lifetime; the secret is
// replaced on rotation and only ever stored encrypted.
type Merchant struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	APIKey     string         `json:"api_key"`
	SecretEnc  string         `json:"-"` // AES-GCM ciphertext, never expose
	WebhookURL *string        `json:"webhook_url,omitempty"`
	Status     MerchantStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	RotatedAt  *time.Time     `json:"rotated_at,omitempty"`
}

// IsActive returns true if the merchant account is active.
func (m *Merchant) IsActive() bool {
	return m.Status == MerchantStatusActive
}

// IssuedCredential is the one-time view of a freshly issued or rotated
// credential. Secret is plaintext and must not be persisted.
type IssuedCredential struct {
	MerchantID uuid.UUID `json:"merchant_id"`
	APIKey     string    `json:"api_key"`
	Secret     string    `json:"secret"`
	IssuedAt   time.Time `json:"issued_at"`
}
