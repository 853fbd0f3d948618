package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"academy/internal/credential/eligibility"
	"academy/internal/enrollment/models"
	id "academy/pkg/domain"
	dErrors "academy/pkg/domain-errors"
	"academy/pkg/platform/audit"
	"academy/pkg/platform/sentinel"
	txcontext "academy/pkg/platform/tx"
	"academy/pkg/requestcontext"
)

type Store interface {
	FindByID(ctx context.Context, enrollmentID id.EnrollmentID) (*models.Enrollment, error)
	FindForUpdate(ctx context.Context, enrollmentID id.EnrollmentID) (*models.Enrollment, error)
	Update(ctx context.Context, e *models.Enrollment) error
}

// StoreTx provides the transactional boundary for grading updates.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event) error
}

// Service applies the grading workflow's allow-listed updates.
type Service struct {
	store    Store
	tx       StoreTx
	policy   eligibility.Policy
	recorder AuditRecorder
	logger   *slog.Logger
}

type Option func(*Service)

func WithTx(tx StoreTx) Option {
	return func(s *Service) { s.tx = tx }
}

func WithPolicy(p eligibility.Policy) Option {
	return func(s *Service) { s.policy = p }
}

func WithAuditRecorder(r AuditRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: eligibility.DefaultPolicy,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = txcontext.LocalRunner{}
	}
	return s
}

func (s *Service) Get(ctx context.Context, enrollmentID id.EnrollmentID) (*models.Enrollment, error) {
	if enrollmentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "enrollment ID required")
	}
	e, err := s.store.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load enrollment")
	}
	return e, nil
}

// UpdateEnrollment applies a grading update under a row lock. Cancelled or
// credentialed enrollments are frozen.
func (s *Service) UpdateEnrollment(ctx context.Context, enrollmentID id.EnrollmentID, u models.Update) (*models.Enrollment, error) {
	if enrollmentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "enrollment ID required")
	}
	if u.FinalScore != nil {
		if err := s.policy.ValidateScore(*u.FinalScore); err != nil {
			return nil, err
		}
	}

	var updated *models.Enrollment
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		e, err := s.store.FindForUpdate(txCtx, enrollmentID)
		if err != nil {
			return wrapStoreErr(err, "failed to lock enrollment")
		}
		if err := e.ApplyUpdate(u, requestcontext.Now(txCtx)); err != nil {
			return err
		}
		if err := s.store.Update(txCtx, e); err != nil {
			return wrapStoreErr(err, "failed to update enrollment")
		}
		if s.recorder != nil {
			if err := s.recorder.Record(txCtx, updatedEvent(e)); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record enrollment update")
			}
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(err, "enrollment transaction failed")
	}

	s.logger.InfoContext(ctx, "enrollment updated",
		"enrollment_id", updated.ID.String(),
		"state", string(updated.State),
		"request_id", requestcontext.RequestID(ctx),
	)
	return updated, nil
}

func updatedEvent(e *models.Enrollment) audit.Event {
	attrs := map[string]string{"state": string(e.State)}
	if e.FinalScore != nil {
		attrs["final_score"] = strconv.FormatFloat(*e.FinalScore, 'f', -1, 64)
	}
	return audit.Event{
		Type:         audit.EventEnrollmentUpdated,
		PersonID:     e.PersonID.String(),
		EnrollmentID: e.ID.String(),
		Attributes:   attrs,
	}
}

func wrapStoreErr(err error, action string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "enrollment not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "enrollment update violates a stored constraint")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "enrollment store unavailable")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}
