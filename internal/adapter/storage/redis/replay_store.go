package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReplayStore implements ports.ReplayStore with SET NX. Redis expiry does
// the eviction, so memory stays bounded by the acceptance window.
type ReplayStore struct {
	client goredis.UniversalClient
	prefix string
}

// NewReplayStore creates a new Redis-backed replay store.
func NewReplayStore(client goredis.UniversalClient) *ReplayStore {
	return &ReplayStore{
		client: client,
		prefix: "replay:",
	}
}

// Record inserts (apiKey, timestamp) if absent and reports whether it did.
func (s *ReplayStore) Record(ctx context.Context, apiKey string, timestamp int64, ttl time.Duration) (bool, error) {
	key := s.prefix + apiKey + ":" + strconv.FormatInt(timestamp, 10)
	result, err := s.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis replay record: %w", err)
	}
	return result == "OK", nil
}
