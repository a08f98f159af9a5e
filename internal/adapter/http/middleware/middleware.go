package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/pkg/apperror"
	"merchant-trust-gateway/pkg/metrics"
	"merchant-trust-gateway/pkg/response"
	"merchant-trust-gateway/pkg/signer"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderRequestID = "X-Request-ID"

	// Context keys
	CtxRequestID  = "request_id"
	CtxMerchantID = "merchant_id"
	CtxAPIKey     = "api_key"
	CtxPrincipal  = "principal"
)

var requestIDRe = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

// HMACAuth verifies the X-API-Key, X-Timestamp and X-Signature headers
// against the raw request body. The body is restored for the handler.
// Every signature failure produces the same outward error; the specific
// reason is logged and counted by the signature service.
func HMACAuth(sigSvc ports.SignatureService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			b, err := io.ReadAll(c.Request.Body)
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					response.AbortWithError(c, apperror.ErrPayloadTooLarge())
					return
				}
				response.AbortWithError(c, apperror.Validation("cannot read request body"))
				return
			}
			body = b
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		caller, err := sigSvc.Verify(c.Request.Context(), domain.SignedRequest{
			APIKey:    c.GetHeader(signer.HeaderAPIKey),
			Timestamp: c.GetHeader(signer.HeaderTimestamp),
			Signature: c.GetHeader(signer.HeaderSignature),
			Body:      body,
		})
		if err != nil {
			if !apperror.IsKind(err, apperror.KindSignature) {
				log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("signature verification failed")
			}
			response.AbortWithError(c, err)
			return
		}

		c.Set(CtxMerchantID, caller.MerchantID)
		c.Set(CtxAPIKey, caller.APIKey)
		c.Next()
	}
}

// SessionAuth resolves the bearer access token of dashboard routes. Any
// failure is a 401 and the client must re-authenticate.
func SessionAuth(sessions ports.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			response.AbortWithError(c, apperror.ErrUnauthorized())
			return
		}

		principal, err := sessions.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			response.AbortWithError(c, err)
			return
		}

		c.Set(CtxPrincipal, *principal)
		c.Set(CtxMerchantID, principal.MerchantID)
		c.Next()
	}
}

// MerchantID returns the merchant resolved by HMACAuth or SessionAuth.
func MerchantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(CtxMerchantID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// PrincipalFrom returns the dashboard principal set by SessionAuth.
func PrincipalFrom(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(CtxPrincipal)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)
	return p, ok
}

// RequestID propagates a caller supplied X-Request-ID or assigns one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if !requestIDRe.MatchString(id) {
			id = uuid.NewString()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger logs every HTTP request and records its latency. m may be nil.
func RequestLogger(log zerolog.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if m != nil {
			m.RequestDuration.
				WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).
				Observe(latency.Seconds())
		}

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("request_id", c.GetString(CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", route).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery turns a handler panic into a SYS_001 response.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("request_id", c.GetString(CtxRequestID)).
					Str("path", c.Request.URL.Path).
					Msg("panic recovered")
				response.AbortWithError(c, apperror.InternalError(fmt.Errorf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}
