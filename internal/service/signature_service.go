package service

import (
	"context"
	"crypto/hmac"
	"strconv"
	"strings"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/pkg/apperror"
	"merchant-trust-gateway/pkg/metrics"
	"merchant-trust-gateway/pkg/signer"

	"github.com/rs/zerolog"
)

// HMACSignatureService implements ports.SignatureService using
// HMAC-SHA256(secret, timestamp || body).
type HMACSignatureService struct {
	credentials ports.CredentialService
	replay      ports.ReplayGuard
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewHMACSignatureService creates a new signature engine. m may be nil.
func NewHMACSignatureService(
	credentials ports.CredentialService,
	replay ports.ReplayGuard,
	m *metrics.Metrics,
	log zerolog.Logger,
) *HMACSignatureService {
	return &HMACSignatureService{
		credentials: credentials,
		replay:      replay,
		metrics:     m,
		log:         log,
	}
}

// Sign returns the lowercase hex signature of timestamp || body.
func (s *HMACSignatureService) Sign(secret, timestamp string, body []byte) string {
	return signer.Sign(secret, timestamp, body)
}

// Verify authenticates a signed request. Checks run in a fixed order:
// key lookup, constant-time signature compare, then replay admission.
// The replay record is only written for correctly signed requests.
func (s *HMACSignatureService) Verify(ctx context.Context, req domain.SignedRequest) (*ports.VerifiedCaller, error) {
	if req.APIKey == "" || req.Signature == "" || req.Timestamp == "" {
		return nil, s.reject(req.APIKey, domain.RejectMissingHeaders)
	}

	ts, err := strconv.ParseInt(req.Timestamp, 10, 64)
	if err != nil {
		return nil, s.reject(req.APIKey, domain.RejectMalformedTimestamp)
	}

	cred, err := s.credentials.Resolve(ctx, req.APIKey)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return nil, s.reject(req.APIKey, domain.RejectUnknownKey)
		}
		return nil, err
	}

	expected := s.Sign(cred.Secret, req.Timestamp, req.Body)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(req.Signature))) {
		return nil, s.reject(req.APIKey, domain.RejectBadSignature)
	}

	if err := s.replay.Admit(ctx, req.APIKey, ts); err != nil {
		if reason := apperror.ReasonOf(err); reason != "" {
			return nil, s.reject(req.APIKey, domain.RejectReason(reason))
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SignatureAccepted.Inc()
	}
	return &ports.VerifiedCaller{MerchantID: cred.MerchantID, APIKey: cred.APIKey}, nil
}

func (s *HMACSignatureService) reject(apiKey string, reason domain.RejectReason) error {
	s.log.Warn().
		Str("api_key", apiKey).
		Str("reason", string(reason)).
		Msg("signed request rejected")
	if s.metrics != nil {
		s.metrics.SignatureRejections.WithLabelValues(string(reason)).Inc()
	}
	return apperror.ErrSignatureRejected(string(reason))
}
