package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps sliding windows in process memory. It backs single-instance
// deployments and stands in when Redis fails.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter returns an empty MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Check records a hit for key when it fits in the window. Denied hits are not recorded.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.now()
	windowStart := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	hits := keepRecent(m.windows[key], windowStart)
	allowed := len(hits) < limit
	if allowed {
		hits = append(hits, now)
	}
	m.windows[key] = hits

	resetAt := now.Add(window)
	if len(hits) > 0 {
		resetAt = hits[0].Add(window)
	}

	return &Result{
		Allowed:   allowed,
		Remaining: remaining(limit, len(hits)),
		ResetAt:   resetAt,
	}, nil
}

// Cleanup forgets keys whose latest hit is older than maxAge and returns how many
// were removed.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, hits := range m.windows {
		if len(hits) == 0 || hits[len(hits)-1].Before(cutoff) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func keepRecent(hits []time.Time, windowStart time.Time) []time.Time {
	first := 0
	for first < len(hits) && !hits[first].After(windowStart) {
		first++
	}
	if first == 0 {
		return hits
	}

	n := copy(hits, hits[first:])
	return hits[:n]
}
