package handler

import (
	"merchant-trust-gateway/internal/adapter/http/dto"
	"merchant-trust-gateway/internal/adapter/http/middleware"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// MerchantHandler serves API-only merchant onboarding.
type MerchantHandler struct {
	credentials ports.CredentialService
}

// NewMerchantHandler creates a new merchant handler.
func NewMerchantHandler(credentials ports.CredentialService) *MerchantHandler {
	return &MerchantHandler{credentials: credentials}
}

// Register handles POST /v1/merchants/register. The secret in the response
// is never shown again.
func (h *MerchantHandler) Register(c *gin.Context) {
	var req dto.RegisterMerchantRequest
	if !bindJSON(c, &req) {
		return
	}

	cred, err := h.credentials.RegisterMerchant(c.Request.Context(), ports.MerchantRegistration{
		Name:       req.Name,
		Email:      req.Email,
		WebhookURL: req.WebhookURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxMerchantID, cred.MerchantID)
	c.Set(middleware.CtxAuditResourceID, cred.MerchantID.String())
	response.Created(c, dto.ToCredentialResponse(cred))
}

// Profile handles GET /v1/merchants/profile (HMAC).
func (h *MerchantHandler) Profile(c *gin.Context) {
	merchantID, ok := merchantFromContext(c)
	if !ok {
		return
	}

	merchant, err := h.credentials.Profile(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToMerchantProfileResponse(merchant))
}
