// Package service decides rate limits against a shared store, falling back to
// a process-local store while the shared one is failing.
package service

import (
	"context"
	"log/slog"

	"academy/internal/ratelimit/metrics"
	"academy/internal/ratelimit/models"
	"academy/pkg/platform/circuit"
)

// Store is a token bucket backend.
type Store interface {
	Allow(ctx context.Context, key string, p models.Policy) (*models.Result, error)
}

type Limiter struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	policy   models.Policy
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Limiter)

// WithPrimary sets the shared store. Without one every decision is local.
func WithPrimary(s Store) Option {
	return func(l *Limiter) {
		l.primary = s
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(l *Limiter) {
		if b != nil {
			l.breaker = b
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New returns a limiter enforcing policy. fallback is required.
func New(fallback Store, policy models.Policy, opts ...Option) (*Limiter, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	l := &Limiter{
		fallback: fallback,
		breaker:  circuit.New("ratelimit"),
		policy:   policy,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow spends one token from key's bucket. Shared store failures are absorbed
// by the fallback; the result is then marked Degraded.
func (l *Limiter) Allow(ctx context.Context, key string) (*models.Result, error) {
	if l.primary == nil {
		return l.local(ctx, key, false)
	}
	if !l.breaker.Allow() {
		return l.local(ctx, key, true)
	}

	res, err := l.primary.Allow(ctx, key, l.policy)
	if err != nil {
		l.metrics.IncBackendError()
		_, change := l.breaker.RecordFailure()
		if change.Opened {
			l.metrics.SetCircuitOpen(true)
			l.logger.WarnContext(ctx, "rate limit backend circuit opened", "breaker", l.breaker.Name(), "error", err)
		}
		return l.local(ctx, key, true)
	}

	if _, change := l.breaker.RecordSuccess(); change.Closed {
		l.metrics.SetCircuitOpen(false)
		l.logger.InfoContext(ctx, "rate limit backend circuit closed", "breaker", l.breaker.Name())
	}
	l.metrics.ObserveDecision(res.Allowed, metrics.BackendRedis)
	return res, nil
}

func (l *Limiter) local(ctx context.Context, key string, degraded bool) (*models.Result, error) {
	res, err := l.fallback.Allow(ctx, key, l.policy)
	if err != nil {
		return nil, err
	}
	res.Degraded = degraded
	l.metrics.ObserveDecision(res.Allowed, metrics.BackendMemory)
	return res, nil
}
