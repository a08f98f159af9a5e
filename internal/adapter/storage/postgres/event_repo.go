package postgres

import (
	"context"
	"fmt"
	"time"

	"merchant-trust-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EventRepo implements ports.EventRepository over the payment_events
// outbox table.
type EventRepo struct {
	pool Pool
}

func NewEventRepo(pool Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Create writes the event in the caller's transaction. The unique
// (payment_id, event_type) constraint rejects a second event of a kind.
func (r *EventRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.PaymentEvent) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO payment_events (id, payment_id, merchant_id, event_type, payload, attempts, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.PaymentID, e.MerchantID, e.Type, e.Payload, e.Attempts, e.NextAttemptAt, e.CreatedAt,
	)
	if err != nil {
		return wrapWriteErr("insert payment event", err)
	}
	return nil
}

// ClaimPending locks a batch of due, undispatched events. Rows held by
// another dispatcher are skipped, so concurrent instances never deliver the
// same event at once.
func (r *EventRepo) ClaimPending(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]domain.PaymentEvent, error) {
	query := `SELECT id, payment_id, merchant_id, event_type, payload, attempts, last_error,
			delivered_sinks, next_attempt_at, created_at, dispatched_at
		FROM payment_events
		WHERE dispatched_at IS NULL AND next_attempt_at <= $1
		ORDER BY next_attempt_at ASC, created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending events: %w", err)
	}
	defer rows.Close()

	var events []domain.PaymentEvent
	for rows.Next() {
		var e domain.PaymentEvent
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.MerchantID, &e.Type, &e.Payload,
			&e.Attempts, &e.LastError, &e.DeliveredSinks, &e.NextAttemptAt, &e.CreatedAt, &e.DispatchedAt); err != nil {
			return nil, fmt.Errorf("scan payment event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment events: %w", err)
	}
	return events, nil
}

func (r *EventRepo) MarkDispatched(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	_, err := tx.Exec(ctx,
		`UPDATE payment_events SET dispatched_at = $1, attempts = attempts + 1, last_error = NULL WHERE id = $2`,
		at, id)
	if err != nil {
		return fmt.Errorf("mark event dispatched: %w", err)
	}
	return nil
}

func (r *EventRepo) MarkAttemptFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, attempt domain.EventAttempt) error {
	delivered := attempt.DeliveredSinks
	if delivered == nil {
		delivered = []string{}
	}
	_, err := tx.Exec(ctx,
		`UPDATE payment_events
		SET attempts = attempts + 1, last_error = $1, delivered_sinks = $2, next_attempt_at = $3
		WHERE id = $4`,
		attempt.LastError, delivered, attempt.NextAttemptAt, id)
	if err != nil {
		return fmt.Errorf("mark event attempt failed: %w", err)
	}
	return nil
}
