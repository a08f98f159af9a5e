package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"merchant-trust-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrUniqueViolation is returned by repositories when an insert collides
// with an existing row on a unique key.
var ErrUniqueViolation = errors.New("unique constraint violated")

// MerchantRepository defines persistence operations for merchants.
// Lookups return nil, nil when no row matches.
type MerchantRepository interface {
	Create(ctx context.Context, tx pgx.Tx, merchant *domain.Merchant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.Merchant, error)
	GetByEmail(ctx context.Context, email string) (*domain.Merchant, error)
	// RotateSecret swaps the stored secret in one statement. It reports
	// false when no merchant has the given id.
	RotateSecret(ctx context.Context, id uuid.UUID, secretEnc string, rotatedAt time.Time) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.MerchantStatus) error
}

// UserRepository defines persistence operations for dashboard users.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// PaymentRepository defines persistence operations for payments.
// Reads are always scoped to a merchant.
type PaymentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	GetByID(ctx context.Context, merchantID, id uuid.UUID) (*domain.Payment, error)
	GetByReference(ctx context.Context, merchantID uuid.UUID, referenceID string) (*domain.Payment, error)
	// GetForUpdate locks the payment row for the lifetime of tx.
	GetForUpdate(ctx context.Context, tx pgx.Tx, merchantID, id uuid.UUID) (*domain.Payment, error)
	// SubmitUTR stores the UTR and moves the payment to awaiting_verification.
	SubmitUTR(ctx context.Context, tx pgx.Tx, id uuid.UUID, utr string, at time.Time) error
	// UTRInUse reports whether another open or settled payment of the
	// merchant already carries utr.
	UTRInUse(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, utr string, excludeID uuid.UUID) (bool, error)
	// MarkVerified and MarkFailed only apply while the payment is still
	// awaiting_verification and report false otherwise.
	MarkVerified(ctx context.Context, tx pgx.Tx, id uuid.UUID, verifierID uuid.UUID, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string, verifierID uuid.UUID, at time.Time) (bool, error)
	ListPending(ctx context.Context, merchantID uuid.UUID) ([]domain.Payment, error)
	List(ctx context.Context, merchantID uuid.UUID, filter domain.PaymentFilter) ([]domain.Payment, int64, error)
}

// RefundRepository defines persistence operations for refund requests.
type RefundRepository interface {
	Create(ctx context.Context, tx pgx.Tx, refund *domain.Refund) error
	SumByPayment(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (int64, error)
}

// EventRepository is the transactional outbox for payment events.
type EventRepository interface {
	// Create fails with ErrUniqueViolation if the payment already has an
	// event of the same type.
	Create(ctx context.Context, tx pgx.Tx, event *domain.PaymentEvent) error
	// ClaimPending locks up to limit undispatched events whose next attempt
	// is due at now, earliest due first. Rows another dispatcher already
	// holds are skipped.
	ClaimPending(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]domain.PaymentEvent, error)
	MarkDispatched(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error
	// MarkAttemptFailed counts a failed round and reschedules the event.
	MarkAttemptFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, attempt domain.EventAttempt) error
}

// SessionRepository persists dashboard sessions and their refresh tokens.
type SessionRepository interface {
	CreateSession(ctx context.Context, tx pgx.Tx, session *domain.SessionRecord) error
	GetSession(ctx context.Context, id uuid.UUID) (*domain.SessionRecord, error)
	// RevokeSession is idempotent: revoking a revoked session is not an error.
	RevokeSession(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error
	CreateRefreshToken(ctx context.Context, tx pgx.Tx, token *domain.RefreshToken) error
	// GetRefreshTokenForUpdate locks the token row for the lifetime of tx.
	GetRefreshTokenForUpdate(ctx context.Context, tx pgx.Tx, hash string) (*domain.RefreshToken, error)
	ConsumeRefreshToken(ctx context.Context, tx pgx.Tx, hash string, at time.Time) error
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
