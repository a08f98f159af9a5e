package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RevocationStore implements ports.RevocationStore. Entries live as long as
// the longest access token that could still name the session.
type RevocationStore struct {
	client goredis.UniversalClient
	prefix string
}

func NewRevocationStore(client goredis.UniversalClient) *RevocationStore {
	return &RevocationStore{
		client: client,
		prefix: "revoked:",
	}
}

func (s *RevocationStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+sessionID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis revoke session: %w", err)
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("redis revocation lookup: %w", err)
	}
	return n == 1, nil
}
