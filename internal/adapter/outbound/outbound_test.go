package outbound

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports/mocks"
	"merchant-trust-gateway/pkg/signer"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testEvent() *domain.PaymentEvent {
	return &domain.PaymentEvent{
		ID:         uuid.New(),
		PaymentID:  uuid.New(),
		MerchantID: uuid.New(),
		Type:       domain.EventPaymentVerified,
		Payload:    []byte(`{"event":"payment.verified","amount":1000}`),
	}
}

func TestLedgerSink_Deliver(t *testing.T) {
	event := testEvent()

	var gotKey, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(HeaderIdempotencyKey)
		gotType = r.Header.Get("X-Event-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewLedgerSink(srv.URL, srv.Client())
	require.NoError(t, sink.Deliver(context.Background(), event))

	assert.Equal(t, "ledger", sink.Name())
	assert.Equal(t, event.ID.String(), gotKey)
	assert.Equal(t, "payment.verified", gotType)
	assert.JSONEq(t, string(event.Payload), string(gotBody))
}

func TestLedgerSink_StatusHandling(t *testing.T) {
	tests := []struct {
		status  int
		wantErr bool
	}{
		{http.StatusOK, false},
		{http.StatusConflict, false},
		{http.StatusBadRequest, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewLedgerSink(srv.URL, srv.Client()).Deliver(context.Background(), testEvent())
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestLedgerSink_TransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mocks.NewMockHTTPClient(ctrl)
	client.EXPECT().Do(gomock.Any()).Return(nil, errors.New("connection refused"))

	err := NewLedgerSink("http://ledger.invalid", client).Deliver(context.Background(), testEvent())
	assert.ErrorContains(t, err, "connection refused")
}

func TestLogSink_Deliver(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))
	event := testEvent()

	require.NoError(t, sink.Deliver(context.Background(), event))
	assert.Contains(t, buf.String(), event.ID.String())
	assert.Contains(t, buf.String(), `"amount":1000`)
}

func TestWebhookSink_Deliver_SignsWithMerchantSecret(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	encSvc := mocks.NewMockEncryptionService(ctrl)
	client := mocks.NewMockHTTPClient(ctrl)

	sink := NewWebhookSink(merchantRepo, encSvc, client, zerolog.Nop())
	fixed := time.Unix(1_700_000_000, 0)
	sink.now = func() time.Time { return fixed }

	event := testEvent()
	url := "https://merchant.example.com/hooks"

	merchantRepo.EXPECT().GetByID(gomock.Any(), event.MerchantID).Return(&domain.Merchant{
		ID: event.MerchantID, APIKey: "ak_1", SecretEnc: "enc", WebhookURL: &url,
	}, nil)
	encSvc.EXPECT().Decrypt("enc").Return("sk_1", nil)
	client.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, url, req.URL.String())
		assert.Equal(t, "1700000000", req.Header.Get(signer.HeaderTimestamp))
		assert.Equal(t, signer.Sign("sk_1", "1700000000", event.Payload), req.Header.Get(signer.HeaderSignature))
		assert.Equal(t, event.ID.String(), req.Header.Get(HeaderIdempotencyKey))
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	})

	require.NoError(t, sink.Deliver(context.Background(), event))
}

func TestWebhookSink_Deliver_NoURLSkips(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	sink := NewWebhookSink(merchantRepo, mocks.NewMockEncryptionService(ctrl), mocks.NewMockHTTPClient(ctrl), zerolog.Nop())
	event := testEvent()

	merchantRepo.EXPECT().GetByID(gomock.Any(), event.MerchantID).Return(&domain.Merchant{ID: event.MerchantID}, nil)

	assert.NoError(t, sink.Deliver(context.Background(), event))
}

func TestWebhookSink_Deliver_Non2xx(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	encSvc := mocks.NewMockEncryptionService(ctrl)
	client := mocks.NewMockHTTPClient(ctrl)
	sink := NewWebhookSink(merchantRepo, encSvc, client, zerolog.Nop())
	event := testEvent()
	url := "https://merchant.example.com/hooks"

	merchantRepo.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(&domain.Merchant{SecretEnc: "enc", WebhookURL: &url}, nil)
	encSvc.EXPECT().Decrypt("enc").Return("sk", nil)
	client.EXPECT().Do(gomock.Any()).Return(&http.Response{StatusCode: 500, Body: io.NopCloser(bytes.NewReader(nil))}, nil)

	assert.ErrorContains(t, sink.Deliver(context.Background(), event), "500")
}
