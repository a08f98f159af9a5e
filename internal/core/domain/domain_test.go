package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerchant_IsActive(t *testing.T) {
	tests := []struct {
		name   string
		status MerchantStatus
		want   bool
	}{
		{"active", MerchantStatusActive, true},
		{"suspended", MerchantStatusSuspended, false},
		{"deactivated", MerchantStatusDeactivated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Merchant{Status: tt.status}
			assert.Equal(t, tt.want, m.IsActive())
		})
	}
}

func TestPaymentMethod_InitialStatus(t *testing.T) {
	assert.Equal(t, PaymentStatusPending, PaymentMethodUPIIntent.InitialStatus())
	assert.Equal(t, PaymentStatusPending, PaymentMethodBankTransfer.InitialStatus())
	assert.Equal(t, PaymentStatusProcessing, PaymentMethodWallet.InitialStatus())
	assert.Equal(t, PaymentStatusProcessing, PaymentMethodTokenized.InitialStatus())
	assert.Equal(t, PaymentStatusProcessing, PaymentMethodCrypto.InitialStatus())
	assert.False(t, PaymentMethod("cash").Valid())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentStatusPending, PaymentStatusAwaitingVerification, true},
		{PaymentStatusProcessing, PaymentStatusAwaitingVerification, true},
		{PaymentStatusAwaitingVerification, PaymentStatusSuccess, true},
		{PaymentStatusAwaitingVerification, PaymentStatusFailed, true},
		{PaymentStatusPending, PaymentStatusSuccess, false},
		{PaymentStatusProcessing, PaymentStatusPending, false},
		{PaymentStatusSuccess, PaymentStatusFailed, false},
		{PaymentStatusSuccess, PaymentStatusPending, false},
		{PaymentStatusFailed, PaymentStatusAwaitingVerification, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestPayment_AcceptsUTR(t *testing.T) {
	p := &Payment{Method: PaymentMethodBankTransfer, Status: PaymentStatusPending}
	assert.True(t, p.AcceptsUTR())

	p.Status = PaymentStatusAwaitingVerification
	assert.True(t, p.AcceptsUTR())

	p.Status = PaymentStatusSuccess
	assert.False(t, p.AcceptsUTR())
	assert.True(t, p.IsTerminal())

	wallet := &Payment{Method: PaymentMethodWallet, Status: PaymentStatusProcessing}
	assert.False(t, wallet.AcceptsUTR())
}

func TestSessionRecord_IsLive(t *testing.T) {
	now := time.Now()
	s := &SessionRecord{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, s.IsLive(now))

	s.RevokedAt = &now
	assert.False(t, s.IsLive(now))

	expired := &SessionRecord{ExpiresAt: now.Add(-time.Second)}
	assert.False(t, expired.IsLive(now))
}

func TestNewPaymentEvent(t *testing.T) {
	utr := "UTR123"
	p := &Payment{
		ID:         uuid.New(),
		MerchantID: uuid.New(),
		Amount:     1000,
		Currency:   "INR",
		Status:     PaymentStatusSuccess,
		UTRNumber:  &utr,
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	ev, err := NewPaymentEvent(p, EventPaymentVerified, "", at)
	require.NoError(t, err)
	assert.Equal(t, p.ID, ev.PaymentID)
	assert.Equal(t, EventPaymentVerified, ev.Type)
	assert.Equal(t, at, ev.NextAttemptAt, "a new event is due at once")
	assert.False(t, ev.DeliveredTo("ledger"))

	ev.DeliveredSinks = []string{"ledger"}
	assert.True(t, ev.DeliveredTo("ledger"))
	assert.False(t, ev.DeliveredTo("webhook"))

	var payload PaymentEventPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, ev.ID, payload.EventID)
	assert.Equal(t, "UTR123", payload.UTRNumber)
	assert.Equal(t, int64(1000), payload.Amount)
}

func TestParseMethodDetails(t *testing.T) {
	tests := []struct {
		name    string
		method  PaymentMethod
		raw     string
		wantErr bool
	}{
		{"upi ok", PaymentMethodUPIIntent, `{"upi_id":"shop@okbank"}`, false},
		{"upi missing", PaymentMethodUPIIntent, ``, true},
		{"upi malformed", PaymentMethodUPIIntent, `{"upi_id":"nope"}`, true},
		{"bank empty ok", PaymentMethodBankTransfer, ``, false},
		{"bank bad ifsc", PaymentMethodBankTransfer, `{"ifsc_code":"XX"}`, true},
		{"bank good ifsc", PaymentMethodBankTransfer, `{"ifsc_code":"HDFC0001234"}`, false},
		{"wallet without details", PaymentMethodWallet, ``, false},
		{"wallet empty object", PaymentMethodWallet, `{}`, false},
		{"wallet blank user", PaymentMethodWallet, `{"user_id":"  "}`, true},
		{"wallet ok", PaymentMethodWallet, `{"user_id":"u1"}`, false},
		{"tokenized without details", PaymentMethodTokenized, ``, false},
		{"tokenized user only", PaymentMethodTokenized, `{"user_id":"u1"}`, false},
		{"tokenized token without user", PaymentMethodTokenized, `{"token_id":"tok_1"}`, true},
		{"tokenized blank token", PaymentMethodTokenized, `{"user_id":"u1","token_id":" "}`, true},
		{"crypto without details", PaymentMethodCrypto, ``, false},
		{"crypto blank address", PaymentMethodCrypto, `{"crypto_address":" "}`, true},
		{"crypto ok", PaymentMethodCrypto, `{"crypto_address":"bc1q"}`, false},
		{"unknown field", PaymentMethodWallet, `{"user_id":"u1","upi_id":"x@y"}`, true},
		{"unknown method", PaymentMethod("cash"), `{}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseMethodDetails(tt.method, json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.method, d.Method())
		})
	}
}
