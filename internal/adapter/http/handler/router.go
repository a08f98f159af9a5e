package handler

import (
	"merchant-trust-gateway/internal/adapter/http/middleware"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Credentials    ports.CredentialService
	Signatures     ports.SignatureService
	Sessions       ports.SessionService
	Payments       ports.PaymentService
	Verification   ports.VerificationService
	AuditSvc       ports.AuditService   // nil = audit logging disabled
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	Metrics        *metrics.Metrics     // nil = no /metrics and no latency histogram
	HealthCheckers []ports.HealthChecker
	MaxBodyBytes   int64
	Mode           string // gin mode; empty keeps the current one
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger, deps.Metrics))
	r.Use(middleware.MaxBodySize(deps.MaxBodyBytes))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/v1")

	hmacAuth := middleware.HMACAuth(deps.Signatures, deps.Logger)
	sessionAuth := middleware.SessionAuth(deps.Sessions)

	// --- Merchant onboarding ---
	merchantHandler := NewMerchantHandler(deps.Credentials)
	merchants := v1.Group("/merchants")
	{
		merchants.POST("/register", rl("merchants_register"), merchantHandler.Register)
		merchants.GET("/profile", hmacAuth, rl("payments"), merchantHandler.Profile)
	}

	// --- Dashboard accounts ---
	authHandler := NewAuthHandler(deps.Sessions, deps.Credentials)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
		auth.POST("/refresh", rl("auth_refresh"), authHandler.Refresh)
		auth.POST("/logout", sessionAuth, authHandler.Logout)
		auth.GET("/profile", sessionAuth, rl("dashboard"), authHandler.Profile)
		auth.POST("/regenerate-key", sessionAuth, rl("dashboard"), authHandler.RegenerateKey)
	}

	// --- HMAC-signed merchant API ---
	paymentHandler := NewPaymentHandler(deps.Payments, deps.Verification)
	payments := v1.Group("/payments", hmacAuth)
	{
		payments.POST("/create", rl("payments"), paymentHandler.Create)
		payments.POST("/refund", rl("payments_refund"), paymentHandler.Refund)
		payments.GET("/:id", rl("payments"), paymentHandler.Get)
		payments.POST("/:id/utr", rl("payments"), paymentHandler.SubmitUTR)
	}

	// --- Operator dashboard ---
	dashboardHandler := NewDashboardHandler(deps.Verification, deps.Payments)
	dashboard := v1.Group("/dashboard", sessionAuth, rl("dashboard"))
	{
		dashboard.GET("/verifications", dashboardHandler.ListVerifications)
		dashboard.POST("/verifications/:id/verify", dashboardHandler.Verify)
		dashboard.POST("/verifications/:id/reject", dashboardHandler.Reject)
		dashboard.GET("/payments", dashboardHandler.ListPayments)
	}

	return r
}
