package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"merchant-trust-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// AccessClaims is what a dashboard access token carries.
type AccessClaims struct {
	UserID     uuid.UUID
	MerchantID uuid.UUID
	SessionID  uuid.UUID
	ExpiresAt  time.Time
}

// TokenService signs and parses dashboard access tokens.
type TokenService interface {
	Generate(claims AccessClaims) (string, time.Time, error)
	Validate(tokenString string) (*AccessClaims, error)
}

// HTTPClient is the subset of *http.Client used for outbound calls.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// --- Service Ports (Business Logic) ---

// MerchantRegistration is the input to unauthenticated merchant signup.
type MerchantRegistration struct {
	Name       string
	Email      string
	WebhookURL *string
}

// ResolvedCredential is the validation-time view of a merchant's credential.
// It never leaves the process.
type ResolvedCredential struct {
	MerchantID uuid.UUID
	APIKey     string
	Secret     string
}

// CredentialService issues, rotates, and resolves merchant API credentials.
type CredentialService interface {
	RegisterMerchant(ctx context.Context, req MerchantRegistration) (*domain.IssuedCredential, error)
	// Issue generates a credential for merchant and inserts it within tx.
	Issue(ctx context.Context, tx pgx.Tx, merchant *domain.Merchant) (*domain.IssuedCredential, error)
	Rotate(ctx context.Context, merchantID uuid.UUID) (*domain.IssuedCredential, error)
	// Resolve performs an authoritative read of the current secret.
	Resolve(ctx context.Context, apiKey string) (*ResolvedCredential, error)
	Profile(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error)
}

// VerifiedCaller identifies the merchant behind an accepted signed request.
type VerifiedCaller struct {
	MerchantID uuid.UUID
	APIKey     string
}

// SignatureService computes and validates request signatures.
type SignatureService interface {
	Sign(secret, timestamp string, body []byte) string
	Verify(ctx context.Context, req domain.SignedRequest) (*VerifiedCaller, error)
}

// ReplayGuard bounds the lifetime and reuse of signed timestamps.
type ReplayGuard interface {
	Admit(ctx context.Context, apiKey string, timestamp int64) error
}

// VerifyRequest is an operator's confirmation that a UTR checks out.
type VerifyRequest struct {
	MerchantID uuid.UUID
	PaymentID  uuid.UUID
	UTRNumber  string
	VerifierID uuid.UUID
}

// RejectRequest is an operator's refusal of a submitted UTR.
type RejectRequest struct {
	MerchantID uuid.UUID
	PaymentID  uuid.UUID
	Reason     string
	VerifierID uuid.UUID
}

// VerificationService runs the manual payment verification workflow.
type VerificationService interface {
	SubmitUTR(ctx context.Context, merchantID, paymentID uuid.UUID, utr string) (*domain.Payment, error)
	Verify(ctx context.Context, req VerifyRequest) (*domain.Payment, error)
	Reject(ctx context.Context, req RejectRequest) (*domain.Payment, error)
	ListPending(ctx context.Context, merchantID uuid.UUID) ([]domain.Payment, error)
}

// CreatePaymentRequest holds validated input for payment creation.
type CreatePaymentRequest struct {
	MerchantID    uuid.UUID
	ReferenceID   string
	Amount        int64
	Currency      string
	Method        domain.PaymentMethod
	MethodDetails json.RawMessage
	Metadata      map[string]interface{}
}

// RefundRequest holds validated input for a refund request.
type RefundRequest struct {
	MerchantID uuid.UUID
	PaymentID  uuid.UUID
	Amount     *int64 // nil = full remaining amount
	Reason     string
}

// PaymentService is the payment intake surface used by merchants.
type PaymentService interface {
	Create(ctx context.Context, req CreatePaymentRequest) (*domain.Payment, error)
	Get(ctx context.Context, merchantID, id uuid.UUID) (*domain.Payment, error)
	List(ctx context.Context, merchantID uuid.UUID, filter domain.PaymentFilter) ([]domain.Payment, int64, error)
	Refund(ctx context.Context, req RefundRequest) (*domain.Refund, error)
}

// UserRegistration is the input to dashboard account signup.
type UserRegistration struct {
	Email       string
	Password    string
	CompanyName string
	WebhookURL  *string
}

// Registration is returned once at signup: a session plus the merchant's
// freshly issued API credential.
type Registration struct {
	Session    *domain.Session
	User       *domain.User
	Credential *domain.IssuedCredential
}

// SessionService manages dashboard sessions.
type SessionService interface {
	Register(ctx context.Context, req UserRegistration) (*Registration, error)
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	Logout(ctx context.Context, principal domain.Principal) error
	Authenticate(ctx context.Context, accessToken string) (*domain.Principal, error)
	CurrentUser(ctx context.Context, principal domain.Principal) (*domain.User, error)
}

// EventSink receives dispatched outbox events. Deliveries may repeat;
// sinks dedupe on the event id.
type EventSink interface {
	Name() string
	Deliver(ctx context.Context, event *domain.PaymentEvent) error
}

// EventDispatcher drains the outbox. DispatchOnce reports how many events
// reached every sink.
type EventDispatcher interface {
	DispatchOnce(ctx context.Context) (int, error)
	Run(ctx context.Context) error
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
