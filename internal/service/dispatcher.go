package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/pkg/apperror"
	"merchant-trust-gateway/pkg/metrics"

	"github.com/rs/zerolog"
)

// DispatcherConfig tunes the outbox poller.
type DispatcherConfig struct {
	Interval  time.Duration
	BatchSize int
	// AlertAfter is the attempt count from which failures log at error level.
	AlertAfter int
	// RetryBase is the delay after the first failed round. It doubles per
	// attempt up to RetryMax.
	RetryBase time.Duration
	RetryMax  time.Duration
}

// OutboxDispatcher implements ports.EventDispatcher. It claims due payment
// events and hands each to every sink that has not accepted it yet. An
// event is marked dispatched once all sinks accepted it; otherwise the sinks
// that succeeded are recorded and the event is retried with exponential
// backoff, so one failing event never holds back the ones behind it.
type OutboxDispatcher struct {
	eventRepo  ports.EventRepository
	transactor ports.DBTransactor
	sinks      []ports.EventSink
	cfg        DispatcherConfig
	metrics    *metrics.Metrics
	log        zerolog.Logger
	now        func() time.Time
}

// NewOutboxDispatcher creates a dispatcher. m may be nil.
func NewOutboxDispatcher(
	eventRepo ports.EventRepository,
	transactor ports.DBTransactor,
	sinks []ports.EventSink,
	cfg DispatcherConfig,
	m *metrics.Metrics,
	log zerolog.Logger,
) *OutboxDispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.AlertAfter <= 0 {
		cfg.AlertAfter = 5
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 5 * time.Second
	}
	if cfg.RetryMax < cfg.RetryBase {
		cfg.RetryMax = max(10*time.Minute, cfg.RetryBase)
	}
	return &OutboxDispatcher{
		eventRepo:  eventRepo,
		transactor: transactor,
		sinks:      sinks,
		cfg:        cfg,
		metrics:    m,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled. Tick errors are logged, not returned.
func (d *OutboxDispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	d.log.Info().
		Dur("interval", d.cfg.Interval).
		Int("sinks", len(d.sinks)).
		Msg("event dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("event dispatcher stopped")
			return nil
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

// drain runs batches back to back while they come back full and every
// claimed event got through. Failed events wait for their retry time.
func (d *OutboxDispatcher) drain(ctx context.Context) {
	for ctx.Err() == nil {
		claimed, dispatched, err := d.dispatchBatch(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				d.log.Error().Err(err).Msg("dispatch tick failed")
			}
			return
		}
		if claimed < d.cfg.BatchSize || dispatched < claimed {
			return
		}
	}
}

// DispatchOnce processes one batch and returns how many events reached
// every sink.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	_, dispatched, err := d.dispatchBatch(ctx)
	return dispatched, err
}

func (d *OutboxDispatcher) dispatchBatch(ctx context.Context) (claimed, dispatched int, err error) {
	dbTx, err := d.transactor.Begin(ctx)
	if err != nil {
		return 0, 0, apperror.Storage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := d.now()
	events, err := d.eventRepo.ClaimPending(ctx, dbTx, now, d.cfg.BatchSize)
	if err != nil {
		return 0, 0, apperror.Storage(fmt.Errorf("claim events: %w", err))
	}

	for i := range events {
		event := &events[i]
		delivered, deliverErr := d.deliver(ctx, event)
		if deliverErr != nil {
			attempt := domain.EventAttempt{
				LastError:      deliverErr.Error(),
				DeliveredSinks: delivered,
				NextAttemptAt:  now.Add(d.backoff(event.Attempts + 1)),
			}
			if err := d.eventRepo.MarkAttemptFailed(ctx, dbTx, event.ID, attempt); err != nil {
				return 0, 0, apperror.Storage(fmt.Errorf("record failed attempt: %w", err))
			}
			continue
		}
		if err := d.eventRepo.MarkDispatched(ctx, dbTx, event.ID, d.now()); err != nil {
			return 0, 0, apperror.Storage(fmt.Errorf("mark dispatched: %w", err))
		}
		dispatched++
	}

	if err := dbTx.Commit(ctx); err != nil {
		return 0, 0, apperror.Storage(fmt.Errorf("commit: %w", err))
	}
	return len(events), dispatched, nil
}

// backoff returns the delay before the given attempt number is retried.
func (d *OutboxDispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.RetryBase
	for i := 1; i < attempt && delay < d.cfg.RetryMax; i++ {
		delay *= 2
	}
	return min(delay, d.cfg.RetryMax)
}

// deliver hands the event to each sink that has not accepted it yet. It
// returns every sink that holds the event afterwards.
func (d *OutboxDispatcher) deliver(ctx context.Context, event *domain.PaymentEvent) ([]string, error) {
	delivered := append([]string(nil), event.DeliveredSinks...)
	var failed error
	for _, sink := range d.sinks {
		if event.DeliveredTo(sink.Name()) {
			continue
		}
		err := sink.Deliver(ctx, event)
		d.observe(sink.Name(), err)
		if err == nil {
			delivered = append(delivered, sink.Name())
			continue
		}

		attempt := event.Attempts + 1
		logEvent := d.log.Warn()
		if attempt >= d.cfg.AlertAfter {
			logEvent = d.log.Error()
		}
		logEvent.Err(err).
			Str("event_id", event.ID.String()).
			Str("payment_id", event.PaymentID.String()).
			Str("sink", sink.Name()).
			Int("attempt", attempt).
			Msg("event delivery failed")

		if failed == nil {
			failed = fmt.Errorf("%s: %w", sink.Name(), err)
		}
	}
	if failed == nil {
		d.log.Debug().
			Str("event_id", event.ID.String()).
			Str("type", string(event.Type)).
			Msg("event dispatched")
	}
	return delivered, failed
}

func (d *OutboxDispatcher) observe(sink string, err error) {
	if d.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	d.metrics.EventDeliveries.WithLabelValues(sink, result).Inc()
}
