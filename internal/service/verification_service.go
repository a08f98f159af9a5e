package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"merchant-trust-gateway/config"
	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/pkg/apperror"
	"merchant-trust-gateway/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// VerificationServiceImpl implements ports.VerificationService.
//
// Every transition runs inside one transaction that holds the payment row
// lock, and terminal transitions write their outbox event in that same
// transaction. Two concurrent verifies therefore serialize on the row and
// the second observes success.
type VerificationServiceImpl struct {
	paymentRepo ports.PaymentRepository
	eventRepo   ports.EventRepository
	transactor  ports.DBTransactor
	utrPolicy   string
	metrics     *metrics.Metrics
	log         zerolog.Logger
	now         func() time.Time
}

// NewVerificationService creates a new VerificationServiceImpl. utrPolicy is
// config.UTRPolicyReplace or config.UTRPolicyReject; m may be nil.
func NewVerificationService(
	paymentRepo ports.PaymentRepository,
	eventRepo ports.EventRepository,
	transactor ports.DBTransactor,
	utrPolicy string,
	m *metrics.Metrics,
	log zerolog.Logger,
) *VerificationServiceImpl {
	if utrPolicy == "" {
		utrPolicy = config.UTRPolicyReplace
	}
	return &VerificationServiceImpl{
		paymentRepo: paymentRepo,
		eventRepo:   eventRepo,
		transactor:  transactor,
		utrPolicy:   utrPolicy,
		metrics:     m,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SubmitUTR records the payer's bank reference and moves the payment to
// awaiting_verification. Resubmitting the stored UTR is a no-op.
func (s *VerificationServiceImpl) SubmitUTR(ctx context.Context, merchantID, paymentID uuid.UUID, utr string) (*domain.Payment, error) {
	utr = strings.TrimSpace(utr)
	if utr == "" {
		return nil, apperror.Validation("utr_number is required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payment, err := s.lockPayment(ctx, dbTx, merchantID, paymentID)
	if err != nil {
		return nil, err
	}

	if !payment.Method.RequiresManualConfirmation() {
		return nil, apperror.ErrUTRNotAccepted(string(payment.Method))
	}
	if !payment.AcceptsUTR() {
		if payment.Status == domain.PaymentStatusSuccess {
			return nil, apperror.ErrAlreadyVerified()
		}
		return nil, apperror.ErrIllegalTransition(string(payment.Status), string(domain.PaymentStatusAwaitingVerification))
	}

	if payment.Status == domain.PaymentStatusAwaitingVerification && payment.UTRNumber != nil {
		if *payment.UTRNumber == utr {
			return payment, nil
		}
		if s.utrPolicy == config.UTRPolicyReject {
			return nil, apperror.ErrUTRAlreadySubmitted()
		}
	}

	inUse, err := s.paymentRepo.UTRInUse(ctx, dbTx, merchantID, utr, payment.ID)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("check utr: %w", err))
	}
	if inUse {
		return nil, apperror.ErrUTRInUse()
	}

	now := s.now()
	if err := s.paymentRepo.SubmitUTR(ctx, dbTx, payment.ID, utr, now); err != nil {
		if errors.Is(err, ports.ErrUniqueViolation) {
			return nil, apperror.ErrUTRInUse()
		}
		return nil, apperror.Storage(fmt.Errorf("submit utr: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.Storage(fmt.Errorf("commit: %w", err))
	}

	replaced := payment.Status == domain.PaymentStatusAwaitingVerification
	payment.Status = domain.PaymentStatusAwaitingVerification
	payment.UTRNumber = &utr
	payment.UTRSubmittedAt = &now
	payment.UpdatedAt = now

	s.observe(domain.PaymentStatusAwaitingVerification)
	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("merchant_id", merchantID.String()).
		Bool("replaced", replaced).
		Msg("utr submitted")

	return payment, nil
}

// Verify settles an awaiting payment after the operator confirms its UTR.
// The supplied UTR must equal the stored one exactly.
func (s *VerificationServiceImpl) Verify(ctx context.Context, req ports.VerifyRequest) (*domain.Payment, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payment, err := s.lockPayment(ctx, dbTx, req.MerchantID, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if err := checkTerminalMove(payment, domain.PaymentStatusSuccess); err != nil {
		return nil, err
	}
	if payment.UTRNumber == nil || *payment.UTRNumber != req.UTRNumber {
		return nil, apperror.ErrUTRMismatch()
	}

	now := s.now()
	ok, err := s.paymentRepo.MarkVerified(ctx, dbTx, payment.ID, req.VerifierID, now)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("mark verified: %w", err))
	}
	if !ok {
		return nil, apperror.ErrConflict("Payment changed while being verified")
	}

	payment.Status = domain.PaymentStatusSuccess
	payment.VerifiedBy = &req.VerifierID
	payment.VerifiedAt = &now
	payment.UpdatedAt = now

	if err := s.emit(ctx, dbTx, payment, domain.EventPaymentVerified, ""); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.Storage(fmt.Errorf("commit: %w", err))
	}

	s.observe(domain.PaymentStatusSuccess)
	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("merchant_id", payment.MerchantID.String()).
		Str("verified_by", req.VerifierID.String()).
		Int64("amount", payment.Amount).
		Msg("payment verified")

	return payment, nil
}

// Reject fails an awaiting payment.
func (s *VerificationServiceImpl) Reject(ctx context.Context, req ports.RejectRequest) (*domain.Payment, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apperror.Validation("reason is required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payment, err := s.lockPayment(ctx, dbTx, req.MerchantID, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if err := checkTerminalMove(payment, domain.PaymentStatusFailed); err != nil {
		return nil, err
	}

	now := s.now()
	ok, err := s.paymentRepo.MarkFailed(ctx, dbTx, payment.ID, reason, req.VerifierID, now)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("mark failed: %w", err))
	}
	if !ok {
		return nil, apperror.ErrConflict("Payment changed while being rejected")
	}

	payment.Status = domain.PaymentStatusFailed
	payment.FailureReason = &reason
	payment.VerifiedBy = &req.VerifierID
	payment.VerifiedAt = &now
	payment.UpdatedAt = now

	if err := s.emit(ctx, dbTx, payment, domain.EventPaymentRejected, reason); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.Storage(fmt.Errorf("commit: %w", err))
	}

	s.observe(domain.PaymentStatusFailed)
	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("merchant_id", payment.MerchantID.String()).
		Str("verified_by", req.VerifierID.String()).
		Str("reason", reason).
		Msg("payment rejected")

	return payment, nil
}

// ListPending returns the merchant's review queue, oldest UTR first.
func (s *VerificationServiceImpl) ListPending(ctx context.Context, merchantID uuid.UUID) ([]domain.Payment, error) {
	payments, err := s.paymentRepo.ListPending(ctx, merchantID)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("list pending: %w", err))
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	return payments, nil
}

func (s *VerificationServiceImpl) lockPayment(ctx context.Context, tx pgx.Tx, merchantID, paymentID uuid.UUID) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetForUpdate(ctx, tx, merchantID, paymentID)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("lock payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrNotFound("Payment")
	}
	return payment, nil
}

// emit writes the outbox row. A unique violation means the event already
// exists, which can only happen if the status guard was bypassed; treat it
// as a lost race rather than emitting twice.
func (s *VerificationServiceImpl) emit(ctx context.Context, tx pgx.Tx, p *domain.Payment, typ domain.EventType, reason string) error {
	event, err := domain.NewPaymentEvent(p, typ, reason, s.now())
	if err != nil {
		return apperror.InternalError(fmt.Errorf("build event: %w", err))
	}
	if err := s.eventRepo.Create(ctx, tx, event); err != nil {
		if errors.Is(err, ports.ErrUniqueViolation) {
			return apperror.ErrConflict("Payment event already recorded")
		}
		return apperror.Storage(fmt.Errorf("create event: %w", err))
	}
	return nil
}

func (s *VerificationServiceImpl) observe(to domain.PaymentStatus) {
	if s.metrics != nil {
		s.metrics.VerificationTransitions.WithLabelValues(string(to)).Inc()
	}
}

func checkTerminalMove(p *domain.Payment, to domain.PaymentStatus) error {
	if p.Status == domain.PaymentStatusSuccess {
		return apperror.ErrAlreadyVerified()
	}
	if !domain.CanTransition(p.Status, to) || p.Status != domain.PaymentStatusAwaitingVerification {
		return apperror.ErrIllegalTransition(string(p.Status), string(to))
	}
	return nil
}
