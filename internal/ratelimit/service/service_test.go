package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"academy/internal/ratelimit/metrics"
	"academy/internal/ratelimit/models"
	"academy/internal/ratelimit/store/bucket"
	"academy/pkg/platform/circuit"
)

type flakyStore struct {
	err   error
	calls int
}

func (f *flakyStore) Allow(_ context.Context, _ string, p models.Policy) (*models.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return models.BuildResult(p, float64(p.Burst-1), true, time.Now()), nil
}

type LimiterSuite struct {
	suite.Suite
	primary *flakyStore
	now     time.Time
	metrics *metrics.Metrics
	limiter *Limiter
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	s.primary = &flakyStore{}
	s.now = time.Unix(1_700_000_000, 0)
	s.metrics = metrics.New(prometheus.NewRegistry())
	breaker := circuit.New("test",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Second),
		circuit.WithClock(func() time.Time { return s.now }),
	)
	var err error
	s.limiter, err = New(bucket.NewInMemory(), models.Policy{RatePerMinute: 60, Burst: 5},
		WithPrimary(s.primary),
		WithBreaker(breaker),
		WithMetrics(s.metrics),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
}

func (s *LimiterSuite) TestPrimaryDecides() {
	res, err := s.limiter.Allow(context.Background(), "k")
	s.Require().NoError(err)
	s.True(res.Allowed)
	s.False(res.Degraded)
	s.Equal(1, s.primary.calls)
	s.InDelta(1.0, testutil.ToFloat64(s.metrics.Decisions.WithLabelValues("allowed", metrics.BackendRedis)), 0.001)
}

func (s *LimiterSuite) TestFailuresFallBackAndOpenCircuit() {
	ctx := context.Background()
	s.primary.err = errors.New("connection refused")

	for range 2 {
		res, err := s.limiter.Allow(ctx, "k")
		s.Require().NoError(err)
		s.True(res.Degraded)
	}
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CircuitOpen))

	res, err := s.limiter.Allow(ctx, "k")
	s.Require().NoError(err)
	s.True(res.Degraded)
	s.Equal(2, s.primary.calls, "open circuit skips the primary until the cooldown passes")

	s.primary.err = nil
	s.now = s.now.Add(time.Second)
	res, err = s.limiter.Allow(ctx, "k")
	s.Require().NoError(err)
	s.False(res.Degraded)
	s.Equal(0.0, testutil.ToFloat64(s.metrics.CircuitOpen))
}

func (s *LimiterSuite) TestLocalOnlyIsNotDegraded() {
	limiter, err := New(bucket.NewInMemory(), models.Policy{RatePerMinute: 60, Burst: 1})
	s.Require().NoError(err)

	first, err := limiter.Allow(context.Background(), "k")
	s.Require().NoError(err)
	s.True(first.Allowed)
	s.False(first.Degraded)

	second, err := limiter.Allow(context.Background(), "k")
	s.Require().NoError(err)
	s.False(second.Allowed)
}

func (s *LimiterSuite) TestInvalidPolicy() {
	_, err := New(bucket.NewInMemory(), models.Policy{})
	s.Error(err)
}
