package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"academy/internal/ratelimit/models"
	"academy/pkg/requestcontext"
)

type stubLimiter struct {
	result *models.Result
	err    error
	keys   []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (*models.Result, error) {
	s.keys = append(s.keys, key)
	return s.result, s.err
}

type MiddlewareSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *MiddlewareSuite) serve(limiter RateLimiter) (*httptest.ResponseRecorder, bool) {
	called := false
	h := New(limiter, s.logger).RateLimit("verify")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/verify/abc", nil)
	req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), "203.0.113.77", "curl/8"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, called
}

func (s *MiddlewareSuite) TestAllowedSetsHeaders() {
	limiter := &stubLimiter{result: &models.Result{Allowed: true, Limit: 20, Remaining: 19, ResetAt: time.Unix(1_700_000_060, 0)}}
	rec, called := s.serve(limiter)

	s.True(called)
	s.Equal("20", rec.Header().Get("X-RateLimit-Limit"))
	s.Equal("19", rec.Header().Get("X-RateLimit-Remaining"))
	s.Equal("1700000060", rec.Header().Get("X-RateLimit-Reset"))
	s.Empty(rec.Header().Get("X-RateLimit-Status"))
	s.Equal([]string{"ratelimit:verify:203.0.113.0"}, limiter.keys, "keyed by anonymized prefix")
}

func (s *MiddlewareSuite) TestDeniedIs429() {
	limiter := &stubLimiter{result: &models.Result{Allowed: false, Limit: 20, RetryAfter: 1500 * time.Millisecond, Degraded: true}}
	rec, called := s.serve(limiter)

	s.False(called)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("2", rec.Header().Get("Retry-After"))
	s.Equal("degraded", rec.Header().Get("X-RateLimit-Status"))
	var body RateLimitExceededResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("rate_limit_exceeded", body.Error)
	s.Equal(2, body.RetryAfter)
}

func (s *MiddlewareSuite) TestLimiterErrorFailsOpen() {
	rec, called := s.serve(&stubLimiter{err: errors.New("boom")})
	s.True(called)
	s.Equal(http.StatusOK, rec.Code)
}
