// Package outbound delivers outbox payment events to systems outside the
// gateway.
package outbound

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"
)

// HeaderIdempotencyKey carries the event id so the ledger applies each
// credit at most once however often it is redelivered.
const HeaderIdempotencyKey = "Idempotency-Key"

// LedgerSink posts events to the external ledger service.
type LedgerSink struct {
	url    string
	client ports.HTTPClient
}

// NewLedgerSink creates a sink that POSTs to url.
func NewLedgerSink(url string, client ports.HTTPClient) *LedgerSink {
	return &LedgerSink{url: url, client: client}
}

func (s *LedgerSink) Name() string { return "ledger" }

// Deliver sends the event payload. Any non-2xx answer is a failure, except
// 409, which the ledger uses for an idempotency key it has already applied.
func (s *LedgerSink) Deliver(ctx context.Context, event *domain.PaymentEvent) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(event.Payload))
	if err != nil {
		return fmt.Errorf("build ledger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderIdempotencyKey, event.ID.String())
	req.Header.Set("X-Event-Type", string(event.Type))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ledger returned %d", resp.StatusCode)
	}
	return nil
}
