package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"merchant-trust-gateway/config"
	httpHandler "merchant-trust-gateway/internal/adapter/http/handler"
	"merchant-trust-gateway/internal/adapter/outbound"
	"merchant-trust-gateway/internal/adapter/storage/memory"
	pgStorage "merchant-trust-gateway/internal/adapter/storage/postgres"
	redisStorage "merchant-trust-gateway/internal/adapter/storage/redis"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/internal/service"
	"merchant-trust-gateway/pkg/logger"
	"merchant-trust-gateway/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// storage is every persistence port the services need, from one driver.
type storage struct {
	merchants   ports.MerchantRepository
	users       ports.UserRepository
	sessions    ports.SessionRepository
	payments    ports.PaymentRepository
	refunds     ports.RefundRepository
	events      ports.EventRepository
	audit       ports.AuditRepository
	transactor  ports.DBTransactor
	replay      ports.ReplayStore
	revocations ports.RevocationStore
	idempotency ports.IdempotencyCache
	rateLimits  ports.RateLimitStore
	health      []ports.HealthChecker
	close       func()
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		log.Warn().Msg("memory storage driver: state is lost on exit")
		db := memory.NewDB()
		return &storage{
			merchants:   memory.NewMerchantRepo(db),
			users:       memory.NewUserRepo(db),
			sessions:    memory.NewSessionRepo(db),
			payments:    memory.NewPaymentRepo(db),
			refunds:     memory.NewRefundRepo(db),
			events:      memory.NewEventRepo(db),
			audit:       memory.NewAuditRepo(db),
			transactor:  db,
			replay:      memory.NewReplayStore(),
			revocations: memory.NewRevocationStore(),
			idempotency: memory.NewIdempotencyCache(),
			rateLimits:  memory.NewRateLimitStore(),
			health:      []ports.HealthChecker{db},
			close:       func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &storage{
		merchants:   pgStorage.NewMerchantRepo(pool),
		users:       pgStorage.NewUserRepo(pool),
		sessions:    pgStorage.NewSessionRepo(pool),
		payments:    pgStorage.NewPaymentRepo(pool),
		refunds:     pgStorage.NewRefundRepo(pool),
		events:      pgStorage.NewEventRepo(pool),
		audit:       pgStorage.NewAuditRepo(pool),
		transactor:  pgStorage.NewTransactor(pool),
		replay:      redisStorage.NewReplayStore(rdb),
		revocations: redisStorage.NewRevocationStore(rdb),
		idempotency: redisStorage.NewIdempotencyCache(rdb),
		rateLimits:  redisStorage.NewRateLimitStore(rdb),
		health:      []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		close: func() {
			_ = rdb.Close()
			pool.Close()
		},
	}, nil
}

// gateway is a fully wired server, ready to run.
type gateway struct {
	router     *gin.Engine
	dispatcher *service.OutboxDispatcher
	audit      *service.AuditServiceImpl
	store      *storage
}

func buildGateway(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gateway, error) {
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		store.close()
		return nil, fmt.Errorf("init encryption: %w", err)
	}
	if cfg.JWT.Secret == "" {
		store.close()
		return nil, fmt.Errorf("jwt.secret is required")
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	credentials := service.NewCredentialService(store.merchants, store.transactor, encSvc,
		logger.Component(log, "credentials"))
	replay := service.NewTimestampReplayGuard(store.replay, cfg.Security.ReplayWindow)
	signatures := service.NewHMACSignatureService(credentials, replay, m, logger.Component(log, "signature"))
	sessions := service.NewSessionService(
		store.users,
		store.merchants,
		store.sessions,
		credentials,
		store.transactor,
		service.NewArgon2HashService(),
		service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.Issuer),
		store.revocations,
		service.SessionTTLs{Access: cfg.JWT.AccessTTL, Refresh: cfg.JWT.RefreshTTL},
		logger.Component(log, "sessions"),
	)
	payments := service.NewPaymentService(store.payments, store.refunds, store.idempotency, store.transactor,
		logger.Component(log, "payments"))
	verification := service.NewVerificationService(store.payments, store.events, store.transactor,
		cfg.Verification.UTRResubmission, m, logger.Component(log, "verification"))
	auditSvc := service.NewAuditService(store.audit, logger.Component(log, "audit"))

	client := &http.Client{Timeout: cfg.Dispatcher.HTTPTimeout}
	sinks := []ports.EventSink{outbound.NewLogSink(logger.Component(log, "events"))}
	if cfg.Dispatcher.LedgerURL != "" {
		sinks = append(sinks, outbound.NewLedgerSink(cfg.Dispatcher.LedgerURL, client))
	}
	sinks = append(sinks, outbound.NewWebhookSink(store.merchants, encSvc, client, logger.Component(log, "webhook")))
	dispatcher := service.NewOutboxDispatcher(store.events, store.transactor, sinks, service.DispatcherConfig{
		Interval:  cfg.Dispatcher.Interval,
		BatchSize: cfg.Dispatcher.BatchSize,
		RetryBase: cfg.Dispatcher.RetryBase,
		RetryMax:  cfg.Dispatcher.RetryMax,
	}, m, logger.Component(log, "dispatcher"))

	if path := cfg.Server.SwaggerSpecPath; path != "" {
		if spec, err := os.ReadFile(path); err == nil {
			httpHandler.SetSwaggerSpec(spec)
		} else {
			log.Warn().Err(err).Str("path", path).Msg("OpenAPI spec not readable, serving the embedded one")
		}
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Credentials:    credentials,
		Signatures:     signatures,
		Sessions:       sessions,
		Payments:       payments,
		Verification:   verification,
		AuditSvc:       auditSvc,
		RateLimitStore: store.rateLimits,
		Metrics:        m,
		HealthCheckers: store.health,
		MaxBodyBytes:   cfg.Security.MaxBodyBytes,
		Mode:           cfg.Server.Mode,
		Logger:         logger.Component(log, "http"),
	})

	return &gateway{
		router:     router,
		dispatcher: dispatcher,
		audit:      auditSvc,
		store:      store,
	}, nil
}
