package outbound

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/pkg/signer"

	"github.com/rs/zerolog"
)

// WebhookSink notifies the merchant's webhook_url. The body is signed with
// the merchant's current secret using the same scheme merchants use to
// sign their API calls, so they can verify it with the same code.
type WebhookSink struct {
	merchantRepo ports.MerchantRepository
	encSvc       ports.EncryptionService
	client       ports.HTTPClient
	log          zerolog.Logger
	now          func() time.Time
}

func NewWebhookSink(
	merchantRepo ports.MerchantRepository,
	encSvc ports.EncryptionService,
	client ports.HTTPClient,
	log zerolog.Logger,
) *WebhookSink {
	return &WebhookSink{
		merchantRepo: merchantRepo,
		encSvc:       encSvc,
		client:       client,
		log:          log,
		now:          time.Now,
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

// Deliver posts the event to the merchant. Merchants without a webhook URL
// are skipped.
func (s *WebhookSink) Deliver(ctx context.Context, event *domain.PaymentEvent) error {
	merchant, err := s.merchantRepo.GetByID(ctx, event.MerchantID)
	if err != nil {
		return fmt.Errorf("webhook: fetch merchant: %w", err)
	}
	if merchant == nil || merchant.WebhookURL == nil || *merchant.WebhookURL == "" {
		s.log.Debug().Str("merchant_id", event.MerchantID.String()).Msg("webhook: no webhook URL configured, skipping")
		return nil
	}

	secret, err := s.encSvc.Decrypt(merchant.SecretEnc)
	if err != nil {
		return fmt.Errorf("webhook: decrypt merchant secret: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *merchant.WebhookURL, bytes.NewReader(event.Payload))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	for k, v := range signer.Headers(merchant.APIKey, secret, s.now(), event.Payload) {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderIdempotencyKey, event.ID.String())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: delivery: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: merchant returned %d", resp.StatusCode)
	}
	return nil
}
