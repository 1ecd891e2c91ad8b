package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps fixed-window counters in process memory. It enforces a
// per-instance limit only, so it serves as the local fallback when the shared
// store is unreachable and as a dependency-free stand-in for tests.
type MemoryStore struct {
	mu           sync.Mutex
	windows      map[string]*windowCounter
	timeProvider func() time.Time
}

type windowCounter struct {
	windowStart time.Time
	windowEnd   time.Time
	count       int64
}

type MemoryStoreOpts struct {
	TimeProvider func() time.Time
}

func NewMemoryStore(opts *MemoryStoreOpts) *MemoryStore {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	return &MemoryStore{
		windows:      make(map[string]*windowCounter),
		timeProvider: timeProvider,
	}
}

func (s *MemoryStore) Consume(_ context.Context, clientID string, class Class, quota Quota) (Decision, error) {
	now := s.timeProvider()
	key := fmt.Sprintf("%s:%s", class, clientID)
	windowStart := now.Truncate(quota.Window)

	s.mu.Lock()
	defer s.mu.Unlock()

	counter := s.windows[key]
	if counter == nil || !counter.windowStart.Equal(windowStart) {
		counter = &windowCounter{windowStart: windowStart, windowEnd: windowStart.Add(quota.Window)}
		s.windows[key] = counter
	}
	counter.count++

	remaining := quota.Limit - counter.count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   counter.count <= quota.Limit,
		Limit:     quota.Limit,
		Remaining: remaining,
		ResetAt:   windowStart.Add(quota.Window).Unix(),
	}, nil
}

// Len reports the number of live window counters.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Sweep drops counters whose window ended before the given time. The
// limiter's sweeper runs it periodically; it is not needed for correctness
// because stale windows are replaced on the next consume, only to bound the
// map's growth.
func (s *MemoryStore) Sweep(before time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, counter := range s.windows {
		if counter.windowEnd.Before(before) {
			delete(s.windows, key)
		}
	}
}
