package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayStore_RecordOnce(t *testing.T) {
	s := NewReplayStore()
	ctx := context.Background()

	ok, err := s.Record(ctx, "ak_1", 100, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Record(ctx, "ak_1", 100, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Record(ctx, "ak_2", 100, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReplayStore_EvictsExpired(t *testing.T) {
	s := NewReplayStore()
	clock := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := int64(0); i < 5; i++ {
		_, err := s.Record(ctx, "ak_1", i, time.Duration(i+1)*time.Second)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, s.Len())

	clock = clock.Add(3 * time.Second)
	assert.Equal(t, 2, s.Len())

	ok, err := s.Record(ctx, "ak_1", 0, time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "an evicted pair can be recorded again")

	clock = clock.Add(time.Hour)
	assert.Equal(t, 0, s.Len())
}

func TestReplayStore_ConcurrentAdmissionsOneWins(t *testing.T) {
	s := NewReplayStore()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Record(context.Background(), "ak_race", 7, time.Minute); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestRevocationStore_Expires(t *testing.T) {
	s := NewRevocationStore()
	clock := time.Now()
	s.m.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, s.Revoke(ctx, "sess", time.Minute))
	revoked, err := s.IsRevoked(ctx, "sess")
	require.NoError(t, err)
	assert.True(t, revoked)

	clock = clock.Add(2 * time.Minute)
	revoked, err = s.IsRevoked(ctx, "sess")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestIdempotencyCache_SweepsExpiredOnWrite(t *testing.T) {
	c := NewIdempotencyCache()
	clock := time.Now()
	c.m.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("payment:%d", i), []byte("{}"), time.Minute))
	}
	require.NoError(t, c.Set(ctx, "payment:long", []byte("{}"), time.Hour))
	// Re-setting a key with a shorter TTL must not leave the longer deadline behind.
	require.NoError(t, c.Set(ctx, "payment:0", []byte("{}"), 30*time.Second))
	assert.Equal(t, 101, c.m.len())

	clock = clock.Add(2 * time.Minute)
	require.NoError(t, c.Set(ctx, "payment:new", []byte("{}"), time.Minute))

	c.m.mu.Lock()
	held, queued := len(c.m.entries), c.m.expiry.Len()
	c.m.mu.Unlock()
	assert.Equal(t, 2, held, "expired entries are dropped without being read")
	assert.Equal(t, 2, queued)

	got, err := c.Get(ctx, "payment:long")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestIdempotencyCache_CopiesValues(t *testing.T) {
	c := NewIdempotencyCache()
	ctx := context.Background()

	v := []byte(`{"id":"1"}`)
	require.NoError(t, c.Set(ctx, "k", v, time.Minute))
	v[0] = 'X'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, string(got))

	missing, err := c.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRateLimitStore_FixedWindow(t *testing.T) {
	s := NewRateLimitStore()
	clock := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := s.Allow(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := s.Allow(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)

	clock = clock.Add(time.Minute)
	res, err = s.Allow(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Remaining)
}
