package ports

//go:generate mockgen -source=stores.go -destination=mocks/mock_stores.go -package=mocks

import (
	"context"
	"time"
)

// ReplayStore records (api_key, timestamp) admissions.
type ReplayStore interface {
	// Record atomically inserts the pair if absent. It returns false when
	// the pair was already present. The record is forgotten after ttl.
	Record(ctx context.Context, apiKey string, timestamp int64, ttl time.Duration) (bool, error)
}

// RevocationStore remembers revoked session ids until their access tokens
// would have expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// IdempotencyCache is the fast-path payment idempotency check.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil when absent
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}
