package dto

import (
	"encoding/json"
	"time"

	"merchant-trust-gateway/internal/core/domain"
)

// RegisterMerchantRequest is the request body for API-only merchant signup.
type RegisterMerchantRequest struct {
	Name       string  `json:"name" binding:"required,min=1,max=100"`
	Email      string  `json:"email" binding:"required,email,max=254"`
	WebhookURL *string `json:"webhook_url,omitempty" binding:"omitempty,safe_url,max=2048"`
}

// CredentialResponse carries a freshly issued secret. It is returned once.
type CredentialResponse struct {
	MerchantID string `json:"merchant_id"`
	APIKey     string `json:"api_key"`
	Secret     string `json:"secret"`
	IssuedAt   string `json:"issued_at"`
}

// MerchantProfileResponse is the merchant view without secret material.
type MerchantProfileResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	APIKey     string  `json:"api_key"`
	WebhookURL *string `json:"webhook_url,omitempty"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	RotatedAt  *string `json:"rotated_at,omitempty"`
}

// RegisterUserRequest is the request body for dashboard account signup.
type RegisterUserRequest struct {
	Email       string  `json:"email" binding:"required,email,max=254"`
	Password    string  `json:"password" binding:"required,min=8,max=128" sanitize:"-"`
	CompanyName string  `json:"company_name" binding:"required,min=1,max=100"`
	WebhookURL  *string `json:"webhook_url,omitempty" binding:"omitempty,safe_url,max=2048"`
}

// LoginRequest is the request body for dashboard login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required" sanitize:"-"`
}

// SessionResponse is the token pair handed to the dashboard.
type SessionResponse struct {
	SessionID        string `json:"session_id"`
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresAt        int64  `json:"expires_at"` // Unix timestamp
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
}

// RegisterUserResponse bundles the first session with the merchant's
// one-time credential.
type RegisterUserResponse struct {
	User       UserResponse       `json:"user"`
	Session    SessionResponse    `json:"session"`
	Credential CredentialResponse `json:"credential"`
}

// UserResponse is the dashboard user profile.
type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	CompanyName string `json:"company_name"`
	MerchantID  string `json:"merchant_id"`
	CreatedAt   string `json:"created_at"`
}

// RegenerateKeyResponse returns the rotated secret once.
type RegenerateKeyResponse struct {
	APIKey    string `json:"api_key"`
	Secret    string `json:"secret"`
	RotatedAt string `json:"rotated_at"`
}

// CreatePaymentRequest is the request body for payment creation.
type CreatePaymentRequest struct {
	ReferenceID   string                 `json:"reference_id,omitempty" binding:"omitempty,max=100,safe_id"`
	Amount        int64                  `json:"amount" binding:"required,gt=0"`
	Currency      string                 `json:"currency,omitempty" binding:"omitempty,len=3"`
	Method        string                 `json:"method" binding:"required,payment_method"`
	MethodDetails json.RawMessage        `json:"method_details,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// SubmitUTRRequest is the payer's bank reference for a manual payment.
type SubmitUTRRequest struct {
	UTRNumber string `json:"utr_number" binding:"required,utr"`
}

// RefundRequest is the request body for refund requests.
type RefundRequest struct {
	PaymentID string `json:"payment_id" binding:"required,uuid"`
	Amount    *int64 `json:"amount,omitempty" binding:"omitempty,gt=0"`
	Reason    string `json:"reason" binding:"required,max=500"`
}

// VerifyRequest is the operator's confirmation of the stored UTR.
type VerifyRequest struct {
	UTRNumber string `json:"utr_number" binding:"required,utr"`
}

// RejectRequest is the operator's refusal of a submitted UTR.
type RejectRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// PaymentResponse is the external view of a payment.
type PaymentResponse struct {
	ID             string                 `json:"id"`
	ReferenceID    string                 `json:"reference_id"`
	Amount         int64                  `json:"amount"`
	Currency       string                 `json:"currency"`
	Method         string                 `json:"method"`
	Status         string                 `json:"status"`
	MethodDetails  json.RawMessage        `json:"method_details,omitempty"`
	UTRNumber      *string                `json:"utr_number,omitempty"`
	UTRSubmittedAt *string                `json:"utr_submitted_at,omitempty"`
	VerifiedAt     *string                `json:"verified_at,omitempty"`
	FailureReason  *string                `json:"failure_reason,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      string                 `json:"created_at"`
	UpdatedAt      string                 `json:"updated_at"`
}

// RefundResponse is the external view of a refund request.
type RefundResponse struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// ---- mappers ----

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ToCredentialResponse converts an issued credential.
func ToCredentialResponse(c *domain.IssuedCredential) CredentialResponse {
	return CredentialResponse{
		MerchantID: c.MerchantID.String(),
		APIKey:     c.APIKey,
		Secret:     c.Secret,
		IssuedAt:   formatTime(c.IssuedAt),
	}
}

// ToMerchantProfileResponse converts a merchant.
func ToMerchantProfileResponse(m *domain.Merchant) MerchantProfileResponse {
	return MerchantProfileResponse{
		ID:         m.ID.String(),
		Name:       m.Name,
		Email:      m.Email,
		APIKey:     m.APIKey,
		WebhookURL: m.WebhookURL,
		Status:     string(m.Status),
		CreatedAt:  formatTime(m.CreatedAt),
		RotatedAt:  formatTimePtr(m.RotatedAt),
	}
}

// ToSessionResponse converts a session.
func ToSessionResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		SessionID:        s.ID.String(),
		AccessToken:      s.AccessToken,
		RefreshToken:     s.RefreshToken,
		TokenType:        "Bearer",
		ExpiresAt:        s.ExpiresAt.Unix(),
		RefreshExpiresAt: s.RefreshExpiresAt.Unix(),
	}
}

// ToUserResponse converts a user.
func ToUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		CompanyName: u.CompanyName,
		MerchantID:  u.MerchantID.String(),
		CreatedAt:   formatTime(u.CreatedAt),
	}
}

// ToPaymentResponse converts a payment.
func ToPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID.String(),
		ReferenceID:    p.ReferenceID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Method:         string(p.Method),
		Status:         string(p.Status),
		MethodDetails:  p.MethodDetails,
		UTRNumber:      p.UTRNumber,
		UTRSubmittedAt: formatTimePtr(p.UTRSubmittedAt),
		VerifiedAt:     formatTimePtr(p.VerifiedAt),
		FailureReason:  p.FailureReason,
		Metadata:       p.Metadata,
		CreatedAt:      formatTime(p.CreatedAt),
		UpdatedAt:      formatTime(p.UpdatedAt),
	}
}

// ToPaymentResponses converts a slice, never returning nil.
func ToPaymentResponses(payments []domain.Payment) []PaymentResponse {
	items := make([]PaymentResponse, 0, len(payments))
	for i := range payments {
		items = append(items, ToPaymentResponse(&payments[i]))
	}
	return items
}

// ToRefundResponse converts a refund.
func ToRefundResponse(r *domain.Refund) RefundResponse {
	return RefundResponse{
		ID:        r.ID.String(),
		PaymentID: r.PaymentID.String(),
		Amount:    r.Amount,
		Reason:    r.Reason,
		Status:    string(r.Status),
		CreatedAt: formatTime(r.CreatedAt),
	}
}
