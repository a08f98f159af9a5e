package handler

import (
	"strconv"
	"time"

	"merchant-trust-gateway/internal/adapter/http/dto"
	"merchant-trust-gateway/internal/adapter/http/middleware"
	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/pkg/apperror"
	"merchant-trust-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// DashboardHandler serves the operator verification queue and payment
// listings. All routes are session authenticated.
type DashboardHandler struct {
	verification ports.VerificationService
	payments     ports.PaymentService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(verification ports.VerificationService, payments ports.PaymentService) *DashboardHandler {
	return &DashboardHandler{verification: verification, payments: payments}
}

// ListVerifications handles GET /v1/dashboard/verifications. Oldest
// submission first.
func (h *DashboardHandler) ListVerifications(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}

	pending, err := h.verification.ListPending(c.Request.Context(), principal.MerchantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{
		"items": dto.ToPaymentResponses(pending),
		"total": len(pending),
	})
}

// Verify handles POST /v1/dashboard/verifications/:id/verify. State
// errors are returned verbatim so the operator sees why.
func (h *DashboardHandler) Verify(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.VerifyRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.verification.Verify(c.Request.Context(), ports.VerifyRequest{
		MerchantID: principal.MerchantID,
		PaymentID:  id,
		UTRNumber:  req.UTRNumber,
		VerifierID: principal.UserID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPaymentResponse(payment))
}

// Reject handles POST /v1/dashboard/verifications/:id/reject.
func (h *DashboardHandler) Reject(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.RejectRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.verification.Reject(c.Request.Context(), ports.RejectRequest{
		MerchantID: principal.MerchantID,
		PaymentID:  id,
		Reason:     req.Reason,
		VerifierID: principal.UserID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPaymentResponse(payment))
}

// ListPayments handles GET /v1/dashboard/payments.
// Query: status, method, from, to (Unix seconds), page, page_size.
func (h *DashboardHandler) ListPayments(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}

	filter, err := parsePaymentFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	payments, total, err := h.payments.List(c.Request.Context(), principal.MerchantID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	// The service clamps paging; echo what it applied.
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	response.OK(c, response.NewPage(dto.ToPaymentResponses(payments), total, filter.Page, filter.PageSize))
}

func parsePaymentFilter(c *gin.Context) (domain.PaymentFilter, error) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := domain.PaymentFilter{Page: page, PageSize: pageSize}

	if s := c.Query("status"); s != "" {
		status := domain.PaymentStatus(s)
		filter.Status = &status
	}
	if m := c.Query("method"); m != "" {
		method := domain.PaymentMethod(m)
		filter.Method = &method
	}
	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := c.Query(bound.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, apperror.Validation(bound.name + " must be a Unix timestamp")
		}
		t := time.Unix(v, 0).UTC()
		*bound.dst = &t
	}
	return filter, nil
}
