package handler

import (
	"merchant-trust-gateway/internal/adapter/http/dto"
	"merchant-trust-gateway/internal/adapter/http/middleware"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/pkg/apperror"
	"merchant-trust-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles dashboard account and session endpoints.
type AuthHandler struct {
	sessions    ports.SessionService
	credentials ports.CredentialService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(sessions ports.SessionService, credentials ports.CredentialService) *AuthHandler {
	return &AuthHandler{sessions: sessions, credentials: credentials}
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterUserRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.sessions.Register(c.Request.Context(), ports.UserRegistration{
		Email:       req.Email,
		Password:    req.Password,
		CompanyName: req.CompanyName,
		WebhookURL:  req.WebhookURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxMerchantID, result.User.MerchantID)
	c.Set(middleware.CtxAuditResourceID, result.User.ID.String())
	response.Created(c, dto.RegisterUserResponse{
		User:       dto.ToUserResponse(result.User),
		Session:    dto.ToSessionResponse(result.Session),
		Credential: dto.ToCredentialResponse(result.Credential),
	})
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxMerchantID, session.MerchantID)
	c.Set(middleware.CtxAuditResourceID, session.ID.String())
	response.OK(c, dto.ToSessionResponse(session))
}

// Refresh handles POST /v1/auth/refresh. The presented refresh token is
// consumed; the response carries its replacement.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ToSessionResponse(session))
}

// Logout handles POST /v1/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), principal); err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, principal.SessionID.String())
	response.OK(c, gin.H{"message": "logged out"})
}

// Profile handles GET /v1/auth/profile.
func (h *AuthHandler) Profile(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}

	user, err := h.sessions.CurrentUser(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	merchant, err := h.credentials.Profile(c.Request.Context(), principal.MerchantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{
		"user":     dto.ToUserResponse(user),
		"merchant": dto.ToMerchantProfileResponse(merchant),
	})
}

// RegenerateKey handles POST /v1/auth/regenerate-key. It is session
// authenticated so a leaked secret cannot be used to mint a new one.
func (h *AuthHandler) RegenerateKey(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
		return
	}

	cred, err := h.credentials.Rotate(c.Request.Context(), principal.MerchantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, principal.MerchantID.String())
	response.OK(c, dto.RegenerateKeyResponse{
		APIKey:    cred.APIKey,
		Secret:    cred.Secret,
		RotatedAt: cred.IssuedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}
