package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"merchant-trust-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentCols = `id, merchant_id, reference_id, amount, currency, method, status, method_details,
	utr_number, utr_submitted_at, verified_by, verified_at, failure_reason, metadata, created_at, updated_at`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts a payment within tx. A second payment with the same
// (merchant_id, reference_id) fails with ports.ErrUniqueViolation.
func (r *PaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.MerchantID, p.ReferenceID, p.Amount, p.Currency, p.Method, p.Status, p.MethodDetails,
		p.UTRNumber, p.UTRSubmittedAt, p.VerifiedBy, p.VerifiedAt, p.FailureReason, p.Metadata,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return wrapWriteErr("insert payment", err)
	}
	return nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, merchantID, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentCols + ` FROM payments WHERE id = $1 AND merchant_id = $2`
	return scanPayment(r.pool.QueryRow(ctx, query, id, merchantID), "get payment by id")
}

func (r *PaymentRepo) GetByReference(ctx context.Context, merchantID uuid.UUID, referenceID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentCols + ` FROM payments WHERE merchant_id = $1 AND reference_id = $2`
	return scanPayment(r.pool.QueryRow(ctx, query, merchantID, referenceID), "get payment by reference")
}

// GetForUpdate locks the row until tx ends.
func (r *PaymentRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, merchantID, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentCols + ` FROM payments WHERE id = $1 AND merchant_id = $2 FOR UPDATE`
	return scanPayment(tx.QueryRow(ctx, query, id, merchantID), "lock payment")
}

// SubmitUTR records the payer's UTR. The partial unique index on
// (merchant_id, utr_number) turns a concurrent duplicate into
// ports.ErrUniqueViolation.
func (r *PaymentRepo) SubmitUTR(ctx context.Context, tx pgx.Tx, id uuid.UUID, utr string, at time.Time) error {
	query := `UPDATE payments
		SET utr_number = $1, utr_submitted_at = $2, status = $3, updated_at = $2
		WHERE id = $4 AND status IN ($5, $6, $3)`

	tag, err := tx.Exec(ctx, query, utr, at, domain.PaymentStatusAwaitingVerification, id,
		domain.PaymentStatusPending, domain.PaymentStatusProcessing)
	if err != nil {
		return wrapWriteErr("submit utr", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submit utr: payment %s not open", id)
	}
	return nil
}

func (r *PaymentRepo) UTRInUse(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, utr string, excludeID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM payments
		WHERE merchant_id = $1 AND utr_number = $2 AND id <> $3 AND status <> $4
	)`

	var exists bool
	if err := tx.QueryRow(ctx, query, merchantID, utr, excludeID, domain.PaymentStatusFailed).Scan(&exists); err != nil {
		return false, fmt.Errorf("check utr in use: %w", err)
	}
	return exists, nil
}

func (r *PaymentRepo) MarkVerified(ctx context.Context, tx pgx.Tx, id uuid.UUID, verifierID uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE payments
		SET status = $1, verified_by = $2, verified_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query, domain.PaymentStatusSuccess, verifierID, at, id,
		domain.PaymentStatusAwaitingVerification)
	if err != nil {
		return false, fmt.Errorf("mark payment verified: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PaymentRepo) MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string, verifierID uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE payments
		SET status = $1, failure_reason = $2, verified_by = $3, verified_at = $4, updated_at = $4
		WHERE id = $5 AND status = $6`

	tag, err := tx.Exec(ctx, query, domain.PaymentStatusFailed, reason, verifierID, at, id,
		domain.PaymentStatusAwaitingVerification)
	if err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListPending returns the verification queue, oldest submission first.
func (r *PaymentRepo) ListPending(ctx context.Context, merchantID uuid.UUID) ([]domain.Payment, error) {
	query := `SELECT ` + paymentCols + ` FROM payments
		WHERE merchant_id = $1 AND status = $2
		ORDER BY utr_submitted_at ASC`

	rows, err := r.pool.Query(ctx, query, merchantID, domain.PaymentStatusAwaitingVerification)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows)
}

// List returns a page of payments matching filter plus the total count.
func (r *PaymentRepo) List(ctx context.Context, merchantID uuid.UUID, filter domain.PaymentFilter) ([]domain.Payment, int64, error) {
	conditions := []string{"merchant_id = $1"}
	args := []any{merchantID}
	argIdx := 2

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.Method != nil {
		conditions = append(conditions, fmt.Sprintf("method = $%d", argIdx))
		args = append(args, *filter.Method)
		argIdx++
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *filter.From)
		argIdx++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *filter.To)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM payments WHERE " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	offset := (filter.Page - 1) * filter.PageSize
	dataQuery := fmt.Sprintf(`SELECT `+paymentCols+` FROM payments WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, filter.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments, err := collectPayments(rows)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

func paymentDest(p *domain.Payment) []any {
	return []any{
		&p.ID, &p.MerchantID, &p.ReferenceID, &p.Amount, &p.Currency, &p.Method, &p.Status, &p.MethodDetails,
		&p.UTRNumber, &p.UTRSubmittedAt, &p.VerifiedBy, &p.VerifiedAt, &p.FailureReason, &p.Metadata,
		&p.CreatedAt, &p.UpdatedAt,
	}
}

func scanPayment(row pgx.Row, op string) (*domain.Payment, error) {
	p := &domain.Payment{}
	if err := row.Scan(paymentDest(p)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func collectPayments(rows pgx.Rows) ([]domain.Payment, error) {
	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(paymentDest(&p)...); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}
