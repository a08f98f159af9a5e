package postgres

import (
	"context"
	"fmt"

	"merchant-trust-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RefundRepo implements ports.RefundRepository.
type RefundRepo struct {
	pool Pool
}

func NewRefundRepo(pool Pool) *RefundRepo {
	return &RefundRepo{pool: pool}
}

func (r *RefundRepo) Create(ctx context.Context, tx pgx.Tx, rf *domain.Refund) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO refunds (id, payment_id, merchant_id, amount, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rf.ID, rf.PaymentID, rf.MerchantID, rf.Amount, rf.Reason, rf.Status, rf.CreatedAt,
	)
	if err != nil {
		return wrapWriteErr("insert refund", err)
	}
	return nil
}

// SumByPayment totals refunds already requested against a payment.
func (r *RefundRepo) SumByPayment(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (int64, error) {
	var total int64
	err := tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM refunds WHERE payment_id = $1`, paymentID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum refunds: %w", err)
	}
	return total, nil
}
