package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxAuditResourceID lets a handler name the resource it created, for
// routes where the id is not a path parameter.
const CtxAuditResourceID = "audit_resource_id"

// AuditLog records successful state-changing requests after the handler
// has run. Routes are matched on their registered pattern.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		}
		if id := c.GetString(CtxAuditResourceID); id != "" {
			entry.ResourceID = id
		}
		if mid, ok := MerchantID(c); ok {
			entry.MerchantID = &mid
		}
		if p, ok := PrincipalFrom(c); ok {
			actor := p.UserID
			entry.ActorID = &actor
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	if method != http.MethodPost {
		return "", ""
	}
	switch route {
	case "/v1/merchants/register":
		return domain.AuditActionMerchantRegister, "merchant"
	case "/v1/auth/register":
		return domain.AuditActionUserRegister, "user"
	case "/v1/auth/login":
		return domain.AuditActionLogin, "session"
	case "/v1/auth/logout":
		return domain.AuditActionLogout, "session"
	case "/v1/auth/regenerate-key":
		return domain.AuditActionRotateSecret, "merchant"
	case "/v1/payments/create":
		return domain.AuditActionPaymentCreate, "payment"
	case "/v1/payments/:id/utr":
		return domain.AuditActionUTRSubmit, "payment"
	case "/v1/payments/refund":
		return domain.AuditActionRefund, "refund"
	case "/v1/dashboard/verifications/:id/verify":
		return domain.AuditActionVerify, "payment"
	case "/v1/dashboard/verifications/:id/reject":
		return domain.AuditActionReject, "payment"
	}
	return "", ""
}
