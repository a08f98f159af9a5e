package dto

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := RegisterMerchantRequest{
		Name:  " My Shop ",
		Email: "  shop@example.com  ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "My Shop", req.Name)
	assert.Equal(t, "shop@example.com", req.Email)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := RejectRequest{Reason: "payer sent <script>alert('x')</script> instead"}
	SanitizeStruct(&req)

	assert.Contains(t, req.Reason, "&lt;script&gt;")
	assert.NotContains(t, req.Reason, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	url := "  https://example.com/webhook  "
	req := RegisterMerchantRequest{Name: "Bob Shop", Email: "bob@example.com", WebhookURL: &url}
	SanitizeStruct(&req)

	assert.Equal(t, "https://example.com/webhook", *req.WebhookURL)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := RegisterUserRequest{Email: "carol@example.com", CompanyName: "Carol Shop"}
	SanitizeStruct(&req)
	assert.Nil(t, req.WebhookURL)
}

func TestSanitizeStruct_SkipsTaggedFields(t *testing.T) {
	req := LoginRequest{Email: " dave@example.com ", Password: " p<a>ss word "}
	SanitizeStruct(&req)

	assert.Equal(t, "dave@example.com", req.Email)
	assert.Equal(t, " p<a>ss word ", req.Password)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID(t *testing.T) {
	valid := []string{"ref-001", "REF_002", "a.b.c", "simple123", "ABC-def_GHI.123"}
	for _, tc := range valid {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}

	invalid := []string{"ref 001", "ref<001>", "ref;DROP", "", "ref\n001"}
	for _, tc := range invalid {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	v.SetTagName("binding")
	RegisterValidations(v)
	return v
}

func TestUTRValidation(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		utr   string
		valid bool
	}{
		{"UTR123", true},
		{"HDFCR52025010112345678", true},
		{"utr123abc", true},
		{"UTR12", false},
		{"UTR 123456", false},
		{"UTR-123456", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.utr, func(t *testing.T) {
			err := v.Struct(SubmitUTRRequest{UTRNumber: tt.utr})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCreatePaymentRequest_Validation(t *testing.T) {
	v := newValidator(t)

	require.NoError(t, v.Struct(CreatePaymentRequest{Amount: 1000, Method: "wallet"}))
	require.NoError(t, v.Struct(CreatePaymentRequest{ReferenceID: "order-1", Amount: 1, Currency: "INR", Method: "upi_intent"}))

	assert.Error(t, v.Struct(CreatePaymentRequest{Amount: 1000, Method: "cash"}))
	assert.Error(t, v.Struct(CreatePaymentRequest{Amount: 0, Method: "wallet"}))
	assert.Error(t, v.Struct(CreatePaymentRequest{Amount: 10, Method: "wallet", ReferenceID: "bad ref"}))
	assert.Error(t, v.Struct(CreatePaymentRequest{Amount: 10, Method: "wallet", Currency: "RUPEE"}))
}

func TestSafeURLValidation(t *testing.T) {
	v := newValidator(t)

	good := "https://merchant.example.com/hooks"
	assert.NoError(t, v.Struct(RegisterMerchantRequest{Name: "Shop", Email: "a@b.co", WebhookURL: &good}))

	for _, bad := range []string{"ftp://example.com", "javascript:alert(1)", "not a url"} {
		b := bad
		assert.Error(t, v.Struct(RegisterMerchantRequest{Name: "Shop", Email: "a@b.co", WebhookURL: &b}), bad)
	}
}
