// Package service is the credential ledger: the only writer of credentials.
//
// Issuance, revocation and sequence assignment each run in one transaction
// that also appends the matching audit event to the outbox, so a credential
// and its event commit together or not at all.
package service

import (
	"context"
	"log/slog"
	"time"

	"academy/internal/credential/eligibility"
	"academy/internal/credential/metrics"
	"academy/internal/credential/models"
	enrollment "academy/internal/enrollment/models"
	"academy/internal/platform/tracer"
	id "academy/pkg/domain"
	"academy/pkg/platform/audit"
	txcontext "academy/pkg/platform/tx"
)

// Store persists credentials.
// Error contract: Find methods return sentinel.ErrNotFound; Insert returns
// sentinel.ErrAlreadyUsed on a token clash; Update returns sentinel.ErrConflict
// when the sequence number is taken; transient failures wrap sentinel.ErrUnavailable.
type Store interface {
	Insert(ctx context.Context, c *models.Credential) (*models.Credential, bool, error)
	FindByID(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	FindForUpdate(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error)
	FindByEnrollment(ctx context.Context, enrollmentID id.EnrollmentID) (*models.Credential, error)
	Update(ctx context.Context, c *models.Credential) error
	ListByPerson(ctx context.Context, personID id.PersonID) ([]*models.Credential, error)
	ListOffering(ctx context.Context, offeringID id.OfferingID, f models.OfferingFilter) ([]models.OfferingRow, error)
}

// EnrollmentStore is the slice of the enrollment store issuance needs.
type EnrollmentStore interface {
	FindForUpdate(ctx context.Context, enrollmentID id.EnrollmentID) (*enrollment.Enrollment, error)
	Update(ctx context.Context, e *enrollment.Enrollment) error
}

type SequenceAllocator interface {
	AllocateNext(ctx context.Context, name string) (int64, error)
}

type TokenService interface {
	Generate() (string, error)
	BuildVerificationURL(token string) string
}

type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event) error
}

type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	store       Store
	enrollments EnrollmentStore
	sequences   SequenceAllocator
	tokens      TokenService
	tx          StoreTx
	policy      eligibility.Policy
	recorder    AuditRecorder
	metrics     *metrics.Metrics
	tracer      tracer.Tracer
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

const (
	defaultMaxAttempts = 3
	defaultBackoff     = 50 * time.Millisecond
)

type Option func(*Service)

func WithTx(tx StoreTx) Option {
	return func(s *Service) { s.tx = tx }
}

func WithPolicy(p eligibility.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithRetry bounds the whole-transaction retries on transient storage failures.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

func WithAuditRecorder(r AuditRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store Store, enrollments EnrollmentStore, sequences SequenceAllocator, tokens TokenService, opts ...Option) *Service {
	s := &Service{
		store:       store,
		enrollments: enrollments,
		sequences:   sequences,
		tokens:      tokens,
		policy:      eligibility.DefaultPolicy,
		tracer:      tracer.NewNoop(),
		logger:      slog.Default(),
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = txcontext.LocalRunner{}
	}
	return s
}

// VerificationURL is the public link embedded in documents and API responses.
func (s *Service) VerificationURL(c *models.Credential) string {
	return s.tokens.BuildVerificationURL(c.Token)
}

func (s *Service) record(ctx context.Context, event audit.Event) error {
	if s.recorder == nil {
		return nil
	}
	return s.recorder.Record(ctx, event)
}
