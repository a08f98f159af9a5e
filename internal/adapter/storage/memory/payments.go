package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentRepo implements ports.PaymentRepository with the same uniqueness
// rules as the SQL schema: one reference per merchant, and one UTR per
// merchant among payments that are not failed.
type PaymentRepo struct{ db *DB }

func NewPaymentRepo(db *DB) *PaymentRepo { return &PaymentRepo{db: db} }

func (r *PaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	return r.db.write(tx, func() (func(), error) {
		for _, existing := range r.db.payments {
			if existing.ID == p.ID ||
				(existing.MerchantID == p.MerchantID && existing.ReferenceID == p.ReferenceID) {
				return nil, fmt.Errorf("insert payment: %w", ports.ErrUniqueViolation)
			}
		}
		undo := setUndo(r.db.payments, p.ID)
		r.db.payments[p.ID] = *p
		return undo, nil
	})
}

func (r *PaymentRepo) GetByID(ctx context.Context, merchantID, id uuid.UUID) (*domain.Payment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	p, ok := r.db.payments[id]
	if !ok || p.MerchantID != merchantID {
		return nil, nil
	}
	return &p, nil
}

func (r *PaymentRepo) GetByReference(ctx context.Context, merchantID uuid.UUID, referenceID string) (*domain.Payment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, p := range r.db.payments {
		if p.MerchantID == merchantID && p.ReferenceID == referenceID {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *PaymentRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, merchantID, id uuid.UUID) (*domain.Payment, error) {
	if _, ok := tx.(*memTx); !ok {
		return nil, errNotMemTx
	}
	return r.GetByID(ctx, merchantID, id)
}

func (r *PaymentRepo) SubmitUTR(ctx context.Context, tx pgx.Tx, id uuid.UUID, utr string, at time.Time) error {
	return r.db.write(tx, func() (func(), error) {
		p, ok := r.db.payments[id]
		if !ok {
			return nil, fmt.Errorf("submit utr: payment %s not found", id)
		}
		switch p.Status {
		case domain.PaymentStatusPending, domain.PaymentStatusProcessing, domain.PaymentStatusAwaitingVerification:
		default:
			return nil, fmt.Errorf("submit utr: payment %s not open", id)
		}
		if r.utrTaken(p.MerchantID, utr, id) {
			return nil, fmt.Errorf("submit utr: %w", ports.ErrUniqueViolation)
		}

		undo := setUndo(r.db.payments, id)
		p.UTRNumber = &utr
		p.UTRSubmittedAt = &at
		p.Status = domain.PaymentStatusAwaitingVerification
		p.UpdatedAt = at
		r.db.payments[id] = p
		return undo, nil
	})
}

func (r *PaymentRepo) UTRInUse(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, utr string, excludeID uuid.UUID) (bool, error) {
	if _, ok := tx.(*memTx); !ok {
		return false, errNotMemTx
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.utrTaken(merchantID, utr, excludeID), nil
}

// utrTaken must be called with db.mu held.
func (r *PaymentRepo) utrTaken(merchantID uuid.UUID, utr string, excludeID uuid.UUID) bool {
	for _, p := range r.db.payments {
		if p.ID == excludeID || p.MerchantID != merchantID || p.Status == domain.PaymentStatusFailed {
			continue
		}
		if p.UTRNumber != nil && *p.UTRNumber == utr {
			return true
		}
	}
	return false
}

func (r *PaymentRepo) MarkVerified(ctx context.Context, tx pgx.Tx, id uuid.UUID, verifierID uuid.UUID, at time.Time) (bool, error) {
	return r.finish(tx, id, func(p *domain.Payment) {
		p.Status = domain.PaymentStatusSuccess
		p.VerifiedBy = &verifierID
		p.VerifiedAt = &at
		p.UpdatedAt = at
	})
}

func (r *PaymentRepo) MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string, verifierID uuid.UUID, at time.Time) (bool, error) {
	return r.finish(tx, id, func(p *domain.Payment) {
		p.Status = domain.PaymentStatusFailed
		p.FailureReason = &reason
		p.VerifiedBy = &verifierID
		p.VerifiedAt = &at
		p.UpdatedAt = at
	})
}

// finish applies a terminal move only while the payment is awaiting review.
func (r *PaymentRepo) finish(tx pgx.Tx, id uuid.UUID, apply func(*domain.Payment)) (bool, error) {
	moved := false
	err := r.db.write(tx, func() (func(), error) {
		p, ok := r.db.payments[id]
		if !ok || p.Status != domain.PaymentStatusAwaitingVerification {
			return nil, nil
		}
		undo := setUndo(r.db.payments, id)
		apply(&p)
		r.db.payments[id] = p
		moved = true
		return undo, nil
	})
	return moved, err
}

func (r *PaymentRepo) ListPending(ctx context.Context, merchantID uuid.UUID) ([]domain.Payment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []domain.Payment
	for _, p := range r.db.payments {
		if p.MerchantID == merchantID && p.Status == domain.PaymentStatusAwaitingVerification {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return submittedAt(out[i]).Before(submittedAt(out[j]))
	})
	return out, nil
}

func submittedAt(p domain.Payment) time.Time {
	if p.UTRSubmittedAt == nil {
		return time.Time{}
	}
	return *p.UTRSubmittedAt
}

func (r *PaymentRepo) List(ctx context.Context, merchantID uuid.UUID, filter domain.PaymentFilter) ([]domain.Payment, int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var matched []domain.Payment
	for _, p := range r.db.payments {
		if p.MerchantID != merchantID {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.Method != nil && p.Method != *filter.Method {
			continue
		}
		if filter.From != nil && p.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && p.CreatedAt.After(*filter.To) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.PageSize
	if start < 0 || start >= len(matched) {
		return nil, total, nil
	}
	end := start + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// RefundRepo implements ports.RefundRepository.
type RefundRepo struct{ db *DB }

func NewRefundRepo(db *DB) *RefundRepo { return &RefundRepo{db: db} }

func (r *RefundRepo) Create(ctx context.Context, tx pgx.Tx, rf *domain.Refund) error {
	return r.db.write(tx, func() (func(), error) {
		n := len(r.db.refunds)
		r.db.refunds = append(r.db.refunds, *rf)
		return func() { r.db.refunds = r.db.refunds[:n] }, nil
	})
}

func (r *RefundRepo) SumByPayment(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var total int64
	for _, rf := range r.db.refunds {
		if rf.PaymentID == paymentID {
			total += rf.Amount
		}
	}
	return total, nil
}
