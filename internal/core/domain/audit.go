package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionMerchantRegister AuditAction = "MERCHANT_REGISTER"
	AuditActionUserRegister     AuditAction = "USER_REGISTER"
	AuditActionLogin            AuditAction = "LOGIN"
	AuditActionLogout           AuditAction = "LOGOUT"
	AuditActionRotateSecret     AuditAction = "ROTATE_SECRET"
	AuditActionPaymentCreate    AuditAction = "PAYMENT_CREATE"
	AuditActionUTRSubmit        AuditAction = "UTR_SUBMIT"
	AuditActionRefund           AuditAction = "REFUND"
	AuditActionVerify           AuditAction = "PAYMENT_VERIFY"
	AuditActionReject           AuditAction = "PAYMENT_REJECT"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	MerchantID   *uuid.UUID  `json:"merchant_id,omitempty"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
