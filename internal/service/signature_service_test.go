package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/internal/core/ports/mocks"
	"merchant-trust-gateway/pkg/apperror"
	"merchant-trust-gateway/pkg/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testAPIKey = "ak_test"
	testSecret = "sk_test_secret"
)

type signatureTestDeps struct {
	svc         *HMACSignatureService
	credentials *mocks.MockCredentialService
	replay      *mocks.MockReplayGuard
	metrics     *metrics.Metrics
}

func setupSignatureService(t *testing.T) *signatureTestDeps {
	ctrl := gomock.NewController(t)
	d := &signatureTestDeps{
		credentials: mocks.NewMockCredentialService(ctrl),
		replay:      mocks.NewMockReplayGuard(ctrl),
		metrics:     metrics.New(),
	}
	d.svc = NewHMACSignatureService(d.credentials, d.replay, d.metrics, zerolog.Nop())
	return d
}

func signedRequest(ts int64, body string) domain.SignedRequest {
	tsStr := strconv.FormatInt(ts, 10)
	return domain.SignedRequest{
		APIKey:    testAPIKey,
		Timestamp: tsStr,
		Body:      []byte(body),
		Signature: (&HMACSignatureService{}).Sign(testSecret, tsStr, []byte(body)),
	}
}

func TestSignatureService_Sign_KnownVector(t *testing.T) {
	svc := &HMACSignatureService{}
	// HMAC-SHA256("key", "1700000000" + "{}")
	sig := svc.Sign("key", "1700000000", []byte("{}"))
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, svc.Sign("key", "1700000000", []byte("{}")))
	assert.NotEqual(t, sig, svc.Sign("key", "1700000001", []byte("{}")))
	assert.NotEqual(t, sig, svc.Sign("key2", "1700000000", []byte("{}")))
}

func TestSignatureService_Verify_Accepted(t *testing.T) {
	d := setupSignatureService(t)
	ctx := context.Background()
	merchantID := uuid.New()
	ts := time.Now().Unix()

	d.credentials.EXPECT().Resolve(ctx, testAPIKey).Return(&ports.ResolvedCredential{
		MerchantID: merchantID, APIKey: testAPIKey, Secret: testSecret,
	}, nil)
	d.replay.EXPECT().Admit(ctx, testAPIKey, ts).Return(nil)

	caller, err := d.svc.Verify(ctx, signedRequest(ts, `{"amount":100}`))
	require.NoError(t, err)
	assert.Equal(t, merchantID, caller.MerchantID)
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.SignatureAccepted))
}

func TestSignatureService_Verify_UppercaseSignature(t *testing.T) {
	d := setupSignatureService(t)
	ctx := context.Background()
	ts := time.Now().Unix()

	req := signedRequest(ts, "")
	req.Signature = toUpperHex(req.Signature)

	d.credentials.EXPECT().Resolve(ctx, testAPIKey).Return(&ports.ResolvedCredential{APIKey: testAPIKey, Secret: testSecret}, nil)
	d.replay.EXPECT().Admit(ctx, testAPIKey, ts).Return(nil)

	_, err := d.svc.Verify(ctx, req)
	assert.NoError(t, err)
}

func TestSignatureService_Verify_Rejections(t *testing.T) {
	ts := time.Now().Unix()

	tests := []struct {
		name   string
		mutate func(r *domain.SignedRequest)
		setup  func(d *signatureTestDeps)
		reason domain.RejectReason
	}{
		{
			name:   "missing api key",
			mutate: func(r *domain.SignedRequest) { r.APIKey = "" },
			reason: domain.RejectMissingHeaders,
		},
		{
			name:   "missing signature",
			mutate: func(r *domain.SignedRequest) { r.Signature = "" },
			reason: domain.RejectMissingHeaders,
		},
		{
			name:   "non numeric timestamp",
			mutate: func(r *domain.SignedRequest) { r.Timestamp = "yesterday" },
			reason: domain.RejectMalformedTimestamp,
		},
		{
			name: "unknown key",
			setup: func(d *signatureTestDeps) {
				d.credentials.EXPECT().Resolve(gomock.Any(), testAPIKey).Return(nil, apperror.ErrNotFound("Credential"))
			},
			reason: domain.RejectUnknownKey,
		},
		{
			name:   "body tampered",
			mutate: func(r *domain.SignedRequest) { r.Body = []byte(`{"amount":999}`) },
			setup: func(d *signatureTestDeps) {
				d.credentials.EXPECT().Resolve(gomock.Any(), testAPIKey).Return(&ports.ResolvedCredential{Secret: testSecret}, nil)
			},
			reason: domain.RejectBadSignature,
		},
		{
			name: "rotated secret",
			setup: func(d *signatureTestDeps) {
				d.credentials.EXPECT().Resolve(gomock.Any(), testAPIKey).Return(&ports.ResolvedCredential{Secret: "sk_new"}, nil)
			},
			reason: domain.RejectBadSignature,
		},
		{
			name: "stale timestamp",
			setup: func(d *signatureTestDeps) {
				d.credentials.EXPECT().Resolve(gomock.Any(), testAPIKey).Return(&ports.ResolvedCredential{Secret: testSecret}, nil)
				d.replay.EXPECT().Admit(gomock.Any(), testAPIKey, ts).
					Return(apperror.ErrSignatureRejected(string(domain.RejectStaleTimestamp)))
			},
			reason: domain.RejectStaleTimestamp,
		},
		{
			name: "replayed timestamp",
			setup: func(d *signatureTestDeps) {
				d.credentials.EXPECT().Resolve(gomock.Any(), testAPIKey).Return(&ports.ResolvedCredential{Secret: testSecret}, nil)
				d.replay.EXPECT().Admit(gomock.Any(), testAPIKey, ts).
					Return(apperror.ErrSignatureRejected(string(domain.RejectReplayedTimestamp)))
			},
			reason: domain.RejectReplayedTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupSignatureService(t)
			req := signedRequest(ts, `{"amount":100}`)
			if tt.mutate != nil {
				tt.mutate(&req)
			}
			if tt.setup != nil {
				tt.setup(d)
			}

			_, err := d.svc.Verify(context.Background(), req)
			require.Error(t, err)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "SEC_001", appErr.Code)
			assert.Equal(t, "Authentication failed", appErr.Message)
			assert.Equal(t, string(tt.reason), apperror.ReasonOf(err))
			assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.SignatureRejections.WithLabelValues(string(tt.reason))))
		})
	}
}

func TestSignatureService_Verify_BadSignatureSkipsReplayStore(t *testing.T) {
	d := setupSignatureService(t)
	ts := time.Now().Unix()
	req := signedRequest(ts, "{}")
	req.Signature = "00" + req.Signature[2:]

	d.credentials.EXPECT().Resolve(gomock.Any(), testAPIKey).Return(&ports.ResolvedCredential{Secret: testSecret}, nil)
	// No Admit expectation: a forged request must not burn the timestamp.

	_, err := d.svc.Verify(context.Background(), req)
	assert.True(t, apperror.IsKind(err, apperror.KindSignature))
}

func TestSignatureService_Verify_StoreFailuresPropagate(t *testing.T) {
	t.Run("credential store", func(t *testing.T) {
		d := setupSignatureService(t)
		d.credentials.EXPECT().Resolve(gomock.Any(), testAPIKey).
			Return(nil, apperror.Unavailable(context.DeadlineExceeded))

		_, err := d.svc.Verify(context.Background(), signedRequest(time.Now().Unix(), ""))
		assert.True(t, apperror.IsKind(err, apperror.KindUnavailable))
	})

	t.Run("replay store", func(t *testing.T) {
		d := setupSignatureService(t)
		ts := time.Now().Unix()
		d.credentials.EXPECT().Resolve(gomock.Any(), testAPIKey).Return(&ports.ResolvedCredential{Secret: testSecret}, nil)
		d.replay.EXPECT().Admit(gomock.Any(), testAPIKey, ts).Return(apperror.Unavailable(errors.New("redis down")))

		_, err := d.svc.Verify(context.Background(), signedRequest(ts, ""))
		assert.True(t, apperror.IsKind(err, apperror.KindUnavailable))
	})
}

func toUpperHex(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
