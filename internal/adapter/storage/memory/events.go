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

// EventRepo implements ports.EventRepository. Events are kept in insertion
// order, which is also creation order.
type EventRepo struct{ db *DB }

func NewEventRepo(db *DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.PaymentEvent) error {
	return r.db.write(tx, func() (func(), error) {
		for _, existing := range r.db.events {
			if existing.PaymentID == e.PaymentID && existing.Type == e.Type {
				return nil, fmt.Errorf("insert payment event: %w", ports.ErrUniqueViolation)
			}
		}
		n := len(r.db.events)
		r.db.events = append(r.db.events, *e)
		return func() { r.db.events = r.db.events[:n] }, nil
	})
}

func (r *EventRepo) ClaimPending(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]domain.PaymentEvent, error) {
	if _, ok := tx.(*memTx); !ok {
		return nil, errNotMemTx
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var due []domain.PaymentEvent
	for _, e := range r.db.events {
		if e.DispatchedAt != nil || e.NextAttemptAt.After(now) {
			continue
		}
		e.DeliveredSinks = append([]string(nil), e.DeliveredSinks...)
		due = append(due, e)
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *EventRepo) MarkDispatched(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	return r.update(tx, id, func(e *domain.PaymentEvent) {
		e.Attempts++
		e.DispatchedAt = &at
		e.LastError = nil
	})
}

func (r *EventRepo) MarkAttemptFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, attempt domain.EventAttempt) error {
	return r.update(tx, id, func(e *domain.PaymentEvent) {
		e.Attempts++
		e.LastError = &attempt.LastError
		e.DeliveredSinks = append([]string(nil), attempt.DeliveredSinks...)
		e.NextAttemptAt = attempt.NextAttemptAt
	})
}

func (r *EventRepo) update(tx pgx.Tx, id uuid.UUID, apply func(*domain.PaymentEvent)) error {
	return r.db.write(tx, func() (func(), error) {
		for i := range r.db.events {
			if r.db.events[i].ID != id {
				continue
			}
			prev := r.db.events[i]
			apply(&r.db.events[i])
			return func() { r.db.events[i] = prev }, nil
		}
		return nil, fmt.Errorf("payment event not found: %s", id)
	})
}

// Events returns a copy of the outbox.
func (r *EventRepo) Events() []domain.PaymentEvent {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return append([]domain.PaymentEvent(nil), r.db.events...)
}
