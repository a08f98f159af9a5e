package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a dashboard operator account. Each user is linked to one merchant.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CompanyName  string    `json:"company_name"`
	MerchantID   uuid.UUID `json:"merchant_id"`
	CreatedAt    time.Time `json:"created_at"`
}
