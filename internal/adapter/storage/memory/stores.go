package memory

import (
	"container/heap"
	"context"
	"strconv"
	"sync"
	"time"

	"merchant-trust-gateway/internal/core/ports"
)

// ReplayStore implements ports.ReplayStore. Records expire in deadline
// order through a min-heap, so cleanup is monotonic and memory stays
// bounded by the admissions inside one acceptance window.
type ReplayStore struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	expiry expiryHeap
	now    func() time.Time
}

func NewReplayStore() *ReplayStore {
	return &ReplayStore{seen: make(map[string]time.Time), now: time.Now}
}

func (s *ReplayStore) Record(ctx context.Context, apiKey string, timestamp int64, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key := apiKey + ":" + strconv.FormatInt(timestamp, 10)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evict(now)
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	deadline := now.Add(ttl)
	s.seen[key] = deadline
	heap.Push(&s.expiry, expiryEntry{key: key, at: deadline})
	return true, nil
}

// Len reports how many records are currently held.
func (s *ReplayStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evict(s.now())
	return len(s.seen)
}

func (s *ReplayStore) evict(now time.Time) {
	for s.expiry.Len() > 0 && !s.expiry[0].at.After(now) {
		e := heap.Pop(&s.expiry).(expiryEntry)
		if s.seen[e.key].Equal(e.at) {
			delete(s.seen, e.key)
		}
	}
}

type expiryEntry struct {
	key string
	at  time.Time
}

type expiryHeap []expiryEntry

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h expiryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x any)        { *h = append(*h, x.(expiryEntry)) }
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// ttlMap is a mutex-guarded map whose entries lapse after a deadline.
// Expired entries are swept in deadline order on every write.
type ttlMap struct {
	mu      sync.Mutex
	entries map[string]ttlEntry
	expiry  expiryHeap
	now     func() time.Time
}

type ttlEntry struct {
	value    []byte
	deadline time.Time
}

func newTTLMap() *ttlMap {
	return &ttlMap{entries: make(map[string]ttlEntry), now: time.Now}
}

func (m *ttlMap) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.deadline) {
		return nil, false
	}
	return e.value, true
}

func (m *ttlMap) set(key string, value []byte, ttl time.Duration) {
	now := m.now()
	deadline := now.Add(ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(now)
	m.entries[key] = ttlEntry{value: value, deadline: deadline}
	heap.Push(&m.expiry, expiryEntry{key: key, at: deadline})
}

func (m *ttlMap) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict(m.now())
	return len(m.entries)
}

func (m *ttlMap) evict(now time.Time) {
	for m.expiry.Len() > 0 && !m.expiry[0].at.After(now) {
		e := heap.Pop(&m.expiry).(expiryEntry)
		if cur, ok := m.entries[e.key]; ok && cur.deadline.Equal(e.at) {
			delete(m.entries, e.key)
		}
	}
}

// RevocationStore implements ports.RevocationStore.
type RevocationStore struct{ m *ttlMap }

func NewRevocationStore() *RevocationStore { return &RevocationStore{m: newTTLMap()} }

func (s *RevocationStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	s.m.set(sessionID, nil, ttl)
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	_, ok := s.m.get(sessionID)
	return ok, nil
}

// IdempotencyCache implements ports.IdempotencyCache.
type IdempotencyCache struct{ m *ttlMap }

func NewIdempotencyCache() *IdempotencyCache { return &IdempotencyCache{m: newTTLMap()} }

func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := c.m.get(key)
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.m.set(key, append([]byte(nil), value...), ttl)
	return nil
}

// RateLimitStore implements ports.RateLimitStore with fixed windows.
type RateLimitStore struct {
	mu      sync.Mutex
	windows map[string]rateWindow
	now     func() time.Time
}

type rateWindow struct {
	id    int64
	count int64
}

func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{windows: make(map[string]rateWindow), now: time.Now}
}

func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	windowSecs := int64(window.Seconds())
	if windowSecs < 1 {
		windowSecs = 1
	}
	windowID := s.now().Unix() / windowSecs

	s.mu.Lock()
	w := s.windows[key]
	if w.id != windowID {
		w = rateWindow{id: windowID}
	}
	w.count++
	s.windows[key] = w
	s.mu.Unlock()

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return &ports.RateLimitResult{
		Allowed:   w.count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   (windowID + 1) * windowSecs,
	}, nil
}
