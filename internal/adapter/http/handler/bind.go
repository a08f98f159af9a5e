package handler

import (
	"errors"
	"net/http"

	"merchant-trust-gateway/internal/adapter/http/dto"
	"merchant-trust-gateway/internal/adapter/http/middleware"
	"merchant-trust-gateway/pkg/apperror"
	"merchant-trust-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// bindJSON decodes and validates the body into req, then sanitizes it.
// On failure the error response has been written.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperror.ErrPayloadTooLarge())
			return false
		}
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

func merchantFromContext(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized())
	}
	return id, ok
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		// Unknown ids and malformed ids look the same to the caller.
		response.Error(c, apperror.ErrNotFound("Payment"))
		return uuid.Nil, false
	}
	return id, true
}
