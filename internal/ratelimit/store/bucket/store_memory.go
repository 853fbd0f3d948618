package bucket

import (
	"context"
	"sync"
	"time"

	"academy/internal/ratelimit/models"
)

// sweepThreshold bounds the number of idle buckets kept before a sweep.
const sweepThreshold = 10_000

type tokenBucket struct {
	tokens float64
	last   time.Time
}

// InMemory is a process-local token bucket store. It is the fallback when
// Redis is down and the only store when Redis is not configured.
type InMemory struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	now     func() time.Time
}

type MemoryOption func(*InMemory)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemory) {
		s.now = now
	}
}

func NewInMemory(opts ...MemoryOption) *InMemory {
	s := &InMemory{buckets: make(map[string]*tokenBucket), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemory) Allow(_ context.Context, key string, p models.Policy) (*models.Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buckets) >= sweepThreshold {
		s.sweep(now, p)
	}
	b, ok := s.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: float64(p.Burst), last: now}
		s.buckets[key] = b
	}
	tokens, allowed := models.Take(p, b.tokens, now.Sub(b.last))
	b.tokens, b.last = tokens, now
	return models.BuildResult(p, tokens, allowed, now), nil
}

// sweep drops buckets that have been idle long enough to be full again.
func (s *InMemory) sweep(now time.Time, p models.Policy) {
	idle := time.Duration(float64(p.Burst)*p.MillisPerToken()) * time.Millisecond
	for key, b := range s.buckets {
		if now.Sub(b.last) >= idle {
			delete(s.buckets, key)
		}
	}
}

// Len reports how many buckets are tracked.
func (s *InMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
