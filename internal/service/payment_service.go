package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	idempotencyTTL  = 24 * time.Hour
	defaultPageSize = 20
	maxPageSize     = 100
)

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	paymentRepo ports.PaymentRepository
	refundRepo  ports.RefundRepository
	idempCache  ports.IdempotencyCache
	transactor  ports.DBTransactor
	log         zerolog.Logger
	now         func() time.Time
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	paymentRepo ports.PaymentRepository,
	refundRepo ports.RefundRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		paymentRepo: paymentRepo,
		refundRepo:  refundRepo,
		idempCache:  idempCache,
		transactor:  transactor,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func idempotencyKey(merchantID uuid.UUID, referenceID string) string {
	return "payment:" + merchantID.String() + ":" + referenceID
}

// Create records a new payment. A repeated reference_id returns the payment
// created first, provided the request describes the same payment.
func (s *PaymentServiceImpl) Create(ctx context.Context, req ports.CreatePaymentRequest) (*domain.Payment, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.Method.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unsupported payment method %q", req.Method))
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, apperror.Validation("currency must be a 3-letter ISO code")
	}
	if _, err := domain.ParseMethodDetails(req.Method, req.MethodDetails); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	referenceID := strings.TrimSpace(req.ReferenceID)
	if referenceID == "" {
		referenceID = "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	req.ReferenceID = referenceID
	req.Currency = currency

	key := idempotencyKey(req.MerchantID, referenceID)

	// Layer 1: cache
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("idempotency cache read failed, falling through to store")
	}
	if cached != nil {
		existing := &domain.Payment{}
		if err := json.Unmarshal(cached, existing); err == nil {
			return sameOrDuplicate(existing, req)
		}
		s.log.Warn().Str("key", key).Msg("discarding unreadable idempotency cache entry")
	}

	// Layer 2: store
	existing, err := s.paymentRepo.GetByReference(ctx, req.MerchantID, referenceID)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("find by reference: %w", err))
	}
	if existing != nil {
		s.cache(ctx, key, existing)
		return sameOrDuplicate(existing, req)
	}

	now := s.now()
	payment := &domain.Payment{
		ID:            uuid.New(),
		MerchantID:    req.MerchantID,
		ReferenceID:   referenceID,
		Amount:        req.Amount,
		Currency:      currency,
		Method:        req.Method,
		Status:        req.Method.InitialStatus(),
		MethodDetails: req.MethodDetails,
		Metadata:      req.Metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.paymentRepo.Create(ctx, dbTx, payment); err != nil {
		if errors.Is(err, ports.ErrUniqueViolation) {
			// A concurrent request with the same reference won.
			winner, getErr := s.paymentRepo.GetByReference(ctx, req.MerchantID, referenceID)
			if getErr != nil || winner == nil {
				return nil, apperror.ErrDuplicateReference()
			}
			return sameOrDuplicate(winner, req)
		}
		return nil, apperror.Storage(fmt.Errorf("create payment: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.Storage(fmt.Errorf("commit: %w", err))
	}

	s.cache(ctx, key, payment)

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("merchant_id", req.MerchantID.String()).
		Str("method", string(payment.Method)).
		Int64("amount", payment.Amount).
		Msg("payment created")

	return payment, nil
}

// Get returns one of the merchant's payments.
func (s *PaymentServiceImpl) Get(ctx context.Context, merchantID, id uuid.UUID) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, merchantID, id)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("get payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrNotFound("Payment")
	}
	return payment, nil
}

// List returns a page of the merchant's payments, newest first.
func (s *PaymentServiceImpl) List(ctx context.Context, merchantID uuid.UUID, filter domain.PaymentFilter) ([]domain.Payment, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	if filter.Method != nil && !filter.Method.Valid() {
		return nil, 0, apperror.Validation("invalid method filter")
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, 0, apperror.Validation("from must not be after to")
	}

	payments, total, err := s.paymentRepo.List(ctx, merchantID, filter)
	if err != nil {
		return nil, 0, apperror.Storage(fmt.Errorf("list payments: %w", err))
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	return payments, total, nil
}

// Refund records a refund request against a settled payment. Refunds are
// cumulative and may not exceed the original amount.
func (s *PaymentServiceImpl) Refund(ctx context.Context, req ports.RefundRequest) (*domain.Refund, error) {
	if req.Amount != nil && *req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payment, err := s.paymentRepo.GetForUpdate(ctx, dbTx, req.MerchantID, req.PaymentID)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("lock payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrNotFound("Payment")
	}
	if payment.Status != domain.PaymentStatusSuccess {
		return nil, apperror.ErrRefundNotAllowed()
	}

	refunded, err := s.refundRepo.SumByPayment(ctx, dbTx, payment.ID)
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("sum refunds: %w", err))
	}
	remaining := payment.Amount - refunded

	amount := remaining
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount <= 0 || amount > remaining {
		return nil, apperror.ErrRefundExceedsAmount()
	}

	refund := &domain.Refund{
		ID:         uuid.New(),
		PaymentID:  payment.ID,
		MerchantID: req.MerchantID,
		Amount:     amount,
		Reason:     req.Reason,
		Status:     domain.RefundStatusRequested,
		CreatedAt:  s.now(),
	}
	if err := s.refundRepo.Create(ctx, dbTx, refund); err != nil {
		return nil, apperror.Storage(fmt.Errorf("create refund: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.Storage(fmt.Errorf("commit: %w", err))
	}

	s.log.Info().
		Str("refund_id", refund.ID.String()).
		Str("payment_id", payment.ID.String()).
		Int64("amount", amount).
		Int64("remaining", remaining-amount).
		Msg("refund requested")

	return refund, nil
}

// cache is best effort; the store remains the source of truth.
func (s *PaymentServiceImpl) cache(ctx context.Context, key string, p *domain.Payment) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.idempCache.Set(ctx, key, raw, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency entry")
	}
}

func sameOrDuplicate(existing *domain.Payment, req ports.CreatePaymentRequest) (*domain.Payment, error) {
	if existing.Amount != req.Amount || existing.Method != req.Method || existing.Currency != req.Currency {
		return nil, apperror.ErrDuplicateReference()
	}
	return existing, nil
}
