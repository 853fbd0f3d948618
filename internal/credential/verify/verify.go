// Package verify answers public "is this credential genuine?" lookups.
//
// Every failure, whether a malformed token, an unknown token, a revoked
// credential or a storage error, produces the same {valid:false} answer.
package verify

import (
	"context"
	"log/slog"
	"time"

	"academy/internal/credential/metrics"
	"academy/internal/credential/models"
	"academy/internal/credential/token"
	"academy/internal/platform/tracer"
	"academy/pkg/requestcontext"
)

type Store interface {
	FindVerification(ctx context.Context, token string) (*models.VerificationRecord, error)
}

// Summary is the public projection of a valid credential. It names the
// course and date only; never the holder.
type Summary struct {
	CourseName string    `json:"course"`
	IssuedAt   time.Time `json:"issued_at"`
	Revoked    bool      `json:"revoked"`
}

type Result struct {
	Valid   bool     `json:"valid"`
	Summary *Summary `json:"summary,omitempty"`
}

var invalid = Result{Valid: false}

type Service struct {
	store   Store
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	logger  *slog.Logger
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, tracer: tracer.NewNoop(), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify never returns an error. Malformed tokens still cost one lookup so
// their latency matches that of well-formed unknown tokens.
func (s *Service) Verify(ctx context.Context, raw string) Result {
	ctx, span := s.tracer.Start(ctx, tracer.SpanVerify)
	result := s.lookup(ctx, raw)
	span.SetAttributes(tracer.Bool(tracer.AttrValid, result.Valid))
	span.End(nil)
	s.metrics.ObserveVerify(result.Valid, requestcontext.UserAgent(ctx))
	return result
}

func (s *Service) lookup(ctx context.Context, raw string) Result {
	wellFormed := token.WellFormed(raw)
	lookupToken := raw
	if !wellFormed {
		lookupToken = token.Placeholder()
	}

	rec, err := s.store.FindVerification(ctx, lookupToken)
	if !wellFormed {
		return invalid
	}
	if err != nil {
		s.logger.DebugContext(ctx, "verification lookup failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return invalid
	}
	if rec.Revoked {
		return invalid
	}
	return Result{
		Valid: true,
		Summary: &Summary{
			CourseName: rec.CourseName,
			IssuedAt:   rec.IssuedAt.UTC(),
			Revoked:    false,
		},
	}
}
