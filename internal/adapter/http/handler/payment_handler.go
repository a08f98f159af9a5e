package handler

import (
	"merchant-trust-gateway/internal/adapter/http/dto"
	"merchant-trust-gateway/internal/adapter/http/middleware"
	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/pkg/apperror"
	"merchant-trust-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler serves the HMAC-signed merchant payment API.
type PaymentHandler struct {
	payments     ports.PaymentService
	verification ports.VerificationService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(payments ports.PaymentService, verification ports.VerificationService) *PaymentHandler {
	return &PaymentHandler{payments: payments, verification: verification}
}

// Create handles POST /v1/payments/create.
func (h *PaymentHandler) Create(c *gin.Context) {
	merchantID, ok := merchantFromContext(c)
	if !ok {
		return
	}

	var req dto.CreatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.payments.Create(c.Request.Context(), ports.CreatePaymentRequest{
		MerchantID:    merchantID,
		ReferenceID:   req.ReferenceID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Method:        domain.PaymentMethod(req.Method),
		MethodDetails: req.MethodDetails,
		Metadata:      req.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, payment.ID.String())
	response.Created(c, dto.ToPaymentResponse(payment))
}

// Get handles GET /v1/payments/:id. Other merchants' payments are not found.
func (h *PaymentHandler) Get(c *gin.Context) {
	merchantID, ok := merchantFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	payment, err := h.payments.Get(c.Request.Context(), merchantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPaymentResponse(payment))
}

// SubmitUTR handles POST /v1/payments/:id/utr.
func (h *PaymentHandler) SubmitUTR(c *gin.Context) {
	merchantID, ok := merchantFromContext(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.SubmitUTRRequest
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.verification.SubmitUTR(c.Request.Context(), merchantID, id, req.UTRNumber)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToPaymentResponse(payment))
}

// Refund handles POST /v1/payments/refund.
func (h *PaymentHandler) Refund(c *gin.Context) {
	merchantID, ok := merchantFromContext(c)
	if !ok {
		return
	}

	var req dto.RefundRequest
	if !bindJSON(c, &req) {
		return
	}
	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		response.Error(c, apperror.Validation("payment_id must be a UUID"))
		return
	}

	refund, err := h.payments.Refund(c.Request.Context(), ports.RefundRequest{
		MerchantID: merchantID,
		PaymentID:  paymentID,
		Amount:     req.Amount,
		Reason:     req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, refund.ID.String())
	response.Created(c, dto.ToRefundResponse(refund))
}
