package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names an outbox event emitted by a payment transition.
type EventType string

const (
	EventPaymentVerified EventType = "payment.verified"
	EventPaymentRejected EventType = "payment.rejected"
)

// PaymentEvent is an outbox row written in the same transaction as the
// status change it describes. At most one event of each type exists per
// payment, which is what keeps the downstream ledger credit single.
type PaymentEvent struct {
	ID         uuid.UUID       `json:"id"`
	PaymentID  uuid.UUID       `json:"payment_id"`
	MerchantID uuid.UUID       `json:"merchant_id"`
	Type       EventType       `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	LastError  *string         `json:"last_error,omitempty"`

	// DeliveredSinks names the sinks that already accepted the event. They
	// are skipped on retry.
	DeliveredSinks []string   `json:"delivered_sinks,omitempty"`
	NextAttemptAt  time.Time  `json:"next_attempt_at"`
	CreatedAt      time.Time  `json:"created_at"`
	DispatchedAt   *time.Time `json:"dispatched_at,omitempty"`
}

// DeliveredTo reports whether sink already accepted the event.
func (e *PaymentEvent) DeliveredTo(sink string) bool {
	for _, s := range e.DeliveredSinks {
		if s == sink {
			return true
		}
	}
	return false
}

// EventAttempt is the outcome of a failed delivery round.
type EventAttempt struct {
	LastError      string
	DeliveredSinks []string
	NextAttemptAt  time.Time
}

// PaymentEventPayload is the body delivered to sinks.
type PaymentEventPayload struct {
	EventID    uuid.UUID     `json:"event_id"`
	Event      EventType     `json:"event"`
	PaymentID  uuid.UUID     `json:"payment_id"`
	MerchantID uuid.UUID     `json:"merchant_id"`
	Amount     int64         `json:"amount"`
	Currency   string        `json:"currency"`
	Status     PaymentStatus `json:"status"`
	UTRNumber  string        `json:"utr_number,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewPaymentEvent builds the outbox row for a payment that has just moved.
func NewPaymentEvent(p *Payment, typ EventType, reason string, at time.Time) (*PaymentEvent, error) {
	id := uuid.New()
	payload := PaymentEventPayload{
		EventID:    id,
		Event:      typ,
		PaymentID:  p.ID,
		MerchantID: p.MerchantID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     p.Status,
		Reason:     reason,
		OccurredAt: at,
	}
	if p.UTRNumber != nil {
		payload.UTRNumber = *p.UTRNumber
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &PaymentEvent{
		ID:            id,
		PaymentID:     p.ID,
		MerchantID:    p.MerchantID,
		Type:          typ,
		Payload:       raw,
		NextAttemptAt: at,
		CreatedAt:     at,
	}, nil
}
