package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditLog_VerifyRecordsActorAndResource(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	principal := domain.Principal{UserID: uuid.New(), MerchantID: uuid.New(), SessionID: uuid.New()}
	paymentID := uuid.New()

	var got *domain.AuditLog
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) {
			got = entry
		},
	)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/v1/dashboard/verifications/:id/verify", func(c *gin.Context) {
		c.Set(CtxPrincipal, principal)
		c.Set(CtxMerchantID, principal.MerchantID)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/dashboard/verifications/"+paymentID.String()+"/verify", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, domain.AuditActionVerify, got.Action)
	assert.Equal(t, "payment", got.ResourceType)
	assert.Equal(t, paymentID.String(), got.ResourceID)
	require.NotNil(t, got.ActorID)
	assert.Equal(t, principal.UserID, *got.ActorID)
	require.NotNil(t, got.MerchantID)
	assert.Equal(t, principal.MerchantID, *got.MerchantID)
}

func TestAuditLog_HandlerNamedResource(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	paymentID := uuid.NewString()
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) {
			assert.Equal(t, domain.AuditActionPaymentCreate, entry.Action)
			assert.Equal(t, paymentID, entry.ResourceID)
			assert.Nil(t, entry.ActorID, "signed calls have no dashboard actor")
		},
	)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/v1/payments/create", func(c *gin.Context) {
		c.Set(CtxMerchantID, uuid.New())
		c.Set(CtxAuditResourceID, paymentID)
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/payments/create", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuditLog_SkipsGET(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)
	// No expectations: Log must not be called for GET.

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.GET("/v1/dashboard/verifications", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"items": []string{}})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/dashboard/verifications", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditLog_SkipsFailedRequests(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/v1/payments/create", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/payments/create", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMapRouteToAction(t *testing.T) {
	tests := []struct {
		route    string
		method   string
		action   domain.AuditAction
		resource string
	}{
		{"/v1/merchants/register", "POST", domain.AuditActionMerchantRegister, "merchant"},
		{"/v1/auth/register", "POST", domain.AuditActionUserRegister, "user"},
		{"/v1/auth/login", "POST", domain.AuditActionLogin, "session"},
		{"/v1/auth/logout", "POST", domain.AuditActionLogout, "session"},
		{"/v1/auth/regenerate-key", "POST", domain.AuditActionRotateSecret, "merchant"},
		{"/v1/payments/create", "POST", domain.AuditActionPaymentCreate, "payment"},
		{"/v1/payments/:id/utr", "POST", domain.AuditActionUTRSubmit, "payment"},
		{"/v1/payments/refund", "POST", domain.AuditActionRefund, "refund"},
		{"/v1/dashboard/verifications/:id/verify", "POST", domain.AuditActionVerify, "payment"},
		{"/v1/dashboard/verifications/:id/reject", "POST", domain.AuditActionReject, "payment"},
		{"/v1/auth/refresh", "POST", "", ""},
		{"/v1/payments/create", "PUT", "", ""},
		{"/unknown", "POST", "", ""},
	}

	for _, tc := range tests {
		action, resource := mapRouteToAction(tc.route, tc.method)
		assert.Equal(t, tc.action, action, "route=%s method=%s", tc.route, tc.method)
		assert.Equal(t, tc.resource, resource, "route=%s method=%s", tc.route, tc.method)
	}
}
