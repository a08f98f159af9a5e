package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the controlled vocabulary of a payment's lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending              PaymentStatus = "pending"
	PaymentStatusProcessing           PaymentStatus = "processing"
	PaymentStatusAwaitingVerification PaymentStatus = "awaiting_verification"
	PaymentStatusSuccess              PaymentStatus = "success"
	PaymentStatusFailed               PaymentStatus = "failed"
)

// PaymentMethod identifies how the payer pays.
type PaymentMethod string

const (
	PaymentMethodUPIIntent    PaymentMethod = "upi_intent"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodWallet       PaymentMethod = "wallet"
	PaymentMethodTokenized    PaymentMethod = "tokenized"
	PaymentMethodCrypto       PaymentMethod = "crypto"
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodUPIIntent, PaymentMethodBankTransfer, PaymentMethodWallet,
		PaymentMethodTokenized, PaymentMethodCrypto:
		return true
	}
	return false
}

// RequiresManualConfirmation is true for methods settled by the payer
// quoting a bank UTR that an operator then checks.
func (m PaymentMethod) RequiresManualConfirmation() bool {
	return m == PaymentMethodUPIIntent || m == PaymentMethodBankTransfer
}

// InitialStatus is where a newly created payment of this method starts.
func (m PaymentMethod) InitialStatus() PaymentStatus {
	if m.RequiresManualConfirmation() {
		return PaymentStatusPending
	}
	return PaymentStatusProcessing
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:              {PaymentStatusProcessing, PaymentStatusAwaitingVerification, PaymentStatusFailed},
	PaymentStatusProcessing:           {PaymentStatusAwaitingVerification, PaymentStatusFailed},
	PaymentStatusAwaitingVerification: {PaymentStatusSuccess, PaymentStatusFailed},
}

// CanTransition reports whether from -> to is a legal forward move.
// Terminal states have no outgoing edges.
func CanTransition(from, to PaymentStatus) bool {
	for _, s := range paymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// DefaultCurrency is applied when a create request omits currency.
const DefaultCurrency = "INR"

// Payment is a single payer-to-merchant payment.
type Payment struct {
	ID             uuid.UUID              `json:"id"`
	MerchantID     uuid.UUID              `json:"merchant_id"`
	ReferenceID    string                 `json:"reference_id"`
	Amount         int64                  `json:"amount"` // smallest currency unit
	Currency       string                 `json:"currency"`
	Method         PaymentMethod          `json:"method"`
	Status         PaymentStatus          `json:"status"`
	MethodDetails  json.RawMessage        `json:"method_details,omitempty"`
	UTRNumber      *string                `json:"utr_number,omitempty"`
	UTRSubmittedAt *time.Time             `json:"utr_submitted_at,omitempty"`
	VerifiedBy     *uuid.UUID             `json:"verified_by,omitempty"`
	VerifiedAt     *time.Time             `json:"verified_at,omitempty"`
	FailureReason  *string                `json:"failure_reason,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// IsTerminal returns true if the payment is settled or rejected.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusSuccess || p.Status == PaymentStatusFailed
}

// AcceptsUTR reports whether a payer may submit or resubmit a UTR now.
func (p *Payment) AcceptsUTR() bool {
	if !p.Method.RequiresManualConfirmation() {
		return false
	}
	return p.Status == PaymentStatusPending ||
		p.Status == PaymentStatusProcessing ||
		p.Status == PaymentStatusAwaitingVerification
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	Status   *PaymentStatus
	Method   *PaymentMethod
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
