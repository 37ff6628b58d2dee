package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a single-process counting cache with the same expiry
// semantics as RedisCache. Use it for local runs and tests only.
type MemoryStore struct {
	mu           sync.Mutex
	counters     map[string]*memoryEntry
	blocks       map[string]time.Time
	now          func() time.Time
	cleanupEvery time.Duration
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

type MemoryOption func(*MemoryStore)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func WithCleanupEvery(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		counters:     make(map[string]*memoryEntry),
		blocks:       make(map[string]time.Time),
		now:          time.Now,
		cleanupEvery: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.counters[key]
	if !ok || !now.Before(ent.expiresAt) {
		ent = &memoryEntry{}
		s.counters[key] = ent
	}
	ent.count++
	ent.expiresAt = now.Add(ttl)
	return ent.count, nil
}

func (s *MemoryStore) Block(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocks[key] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) BlockRemaining(_ context.Context, key string) (time.Duration, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.blocks[key]
	if !ok {
		return 0, nil
	}
	if !now.Before(until) {
		delete(s.blocks, key)
		return 0, nil
	}
	return until.Sub(now), nil
}

// Cleanup drops expired counters and blocks.
func (s *MemoryStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.counters {
		if !now.Before(ent.expiresAt) {
			delete(s.counters, k)
		}
	}
	for k, until := range s.blocks {
		if !now.Before(until) {
			delete(s.blocks, k)
		}
	}
}

// StartJanitor runs Cleanup periodically until ctx is cancelled.
func (s *MemoryStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
