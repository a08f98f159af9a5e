package outbound

import (
	"context"

	"merchant-trust-gateway/internal/core/domain"

	"github.com/rs/zerolog"
)

// LogSink writes events to the structured log. It is always configured so
// that every dispatched event leaves a trace even without a ledger URL.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, event *domain.PaymentEvent) error {
	s.log.Info().
		Str("event_id", event.ID.String()).
		Str("type", string(event.Type)).
		Str("payment_id", event.PaymentID.String()).
		Str("merchant_id", event.MerchantID.String()).
		RawJSON("payload", event.Payload).
		Msg("payment event")
	return nil
}
