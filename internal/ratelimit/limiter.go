// Package ratelimit counts events per key and refuses them once a budget is spent.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter admits at most a fixed number of events per key within a window.
type Limiter interface {
	// Allow consumes one event for key and reports whether it was within budget.
	Allow(ctx context.Context, key string) (bool, error)
	// Wait blocks until an event for key is admitted or ctx is done.
	Wait(ctx context.Context, key string) error
	// Reset forgets everything recorded for key.
	Reset(ctx context.Context, key string) error
}

// maxIdleKeys bounds the memory limiter before full buckets are dropped.
const maxIdleKeys = 10000

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Memory is a per-key token bucket holding limit tokens that refill evenly over window.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   float64
	window  time.Duration
	now     func() time.Time
}

type MemoryOption func(*Memory)

// WithMemoryClock replaces time.Now.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(limit int, window time.Duration, opts ...MemoryOption) (*Memory, error) {
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("invalid rate limit %d per %s", limit, window)
	}
	m := &Memory{
		buckets: make(map[string]*bucket),
		limit:   float64(limit),
		window:  window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Memory) refillRate() float64 {
	return m.limit / float64(m.window)
}

// take refills key's bucket and consumes a token when one is available.
// It returns how long until the next token when none is.
func (m *Memory) take(key string) (bool, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok {
		if len(m.buckets) >= maxIdleKeys {
			m.pruneLocked(now)
		}
		b = &bucket{tokens: m.limit, lastRefill: now}
		m.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		b.tokens += float64(elapsed) * m.refillRate()
		if b.tokens > m.limit {
			b.tokens = m.limit
		}
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	return false, time.Duration((1 - b.tokens) / m.refillRate())
}

// pruneLocked drops buckets that would be full by now.
func (m *Memory) pruneLocked(now time.Time) {
	for key, b := range m.buckets {
		if b.tokens+float64(now.Sub(b.lastRefill))*m.refillRate() >= m.limit {
			delete(m.buckets, key)
		}
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	ok, _ := m.take(key)
	return ok, nil
}

func (m *Memory) Wait(ctx context.Context, key string) error {
	for {
		ok, wait := m.take(key)
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, key)
	return nil
}
