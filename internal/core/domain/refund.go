package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefundStatus tracks a refund request. Funds movement is external, so the
// gateway only ever records the request.
type RefundStatus string

const (
	RefundStatusRequested RefundStatus = "requested"
)

// Refund is a recorded refund request against a settled payment.
type Refund struct {
	ID         uuid.UUID    `json:"id"`
	PaymentID  uuid.UUID    `json:"payment_id"`
	MerchantID uuid.UUID    `json:"merchant_id"`
	Amount     int64        `json:"amount"`
	Reason     string       `json:"reason"`
	Status     RefundStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
}
