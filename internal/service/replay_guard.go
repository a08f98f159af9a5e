package service

import (
	"context"
	"fmt"
	"time"

	"merchant-trust-gateway/internal/core/domain"
	"merchant-trust-gateway/internal/core/ports"
	"merchant-trust-gateway/pkg/apperror"
)

// DefaultReplayWindow is the accepted clock skew either side of now.
const DefaultReplayWindow = 5 * time.Minute

// TimestampReplayGuard implements ports.ReplayGuard. A timestamp is fresh
// while it lies within window of the server clock, and each
// (api_key, timestamp) pair is admitted at most once while fresh.
type TimestampReplayGuard struct {
	store  ports.ReplayStore
	window time.Duration
	now    func() time.Time
}

// NewTimestampReplayGuard creates a replay guard over store.
func NewTimestampReplayGuard(store ports.ReplayStore, window time.Duration) *TimestampReplayGuard {
	if window <= 0 {
		window = DefaultReplayWindow
	}
	return &TimestampReplayGuard{store: store, window: window, now: time.Now}
}

// Admit records the pair or rejects it as stale or replayed.
func (g *TimestampReplayGuard) Admit(ctx context.Context, apiKey string, timestamp int64) error {
	now := g.now()
	at := time.Unix(timestamp, 0)

	if at.Before(now.Add(-g.window)) || at.After(now.Add(g.window)) {
		return apperror.ErrSignatureRejected(string(domain.RejectStaleTimestamp))
	}

	// Keep the record until the timestamp itself leaves the window.
	ttl := at.Add(g.window).Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}

	fresh, err := g.store.Record(ctx, apiKey, timestamp, ttl)
	if err != nil {
		return apperror.Unavailable(fmt.Errorf("replay store: %w", err))
	}
	if !fresh {
		return apperror.ErrSignatureRejected(string(domain.RejectReplayedTimestamp))
	}
	return nil
}
