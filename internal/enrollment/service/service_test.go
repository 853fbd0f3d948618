package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"academy/internal/enrollment/models"
	"academy/internal/enrollment/store"
	id "academy/pkg/domain"
	dErrors "academy/pkg/domain-errors"
	"academy/pkg/platform/audit"
)

type recordingRecorder struct {
	events []audit.Event
	err    error
}

func (r *recordingRecorder) Record(_ context.Context, e audit.Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

type ServiceSuite struct {
	suite.Suite
	store    *store.InMemory
	recorder *recordingRecorder
	svc      *Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.recorder = &recordingRecorder{}
	s.svc = New(s.store, WithAuditRecorder(s.recorder))
	s.ctx = context.Background()
}

func (s *ServiceSuite) seed(state models.State, score *float64) id.EnrollmentID {
	e := &models.Enrollment{
		ID: id.EnrollmentID(uuid.New()), PersonID: id.PersonID(uuid.New()), OfferingID: id.OfferingID(uuid.New()),
		State: state, FinalScore: score,
	}
	s.Require().NoError(s.store.Create(s.ctx, e))
	return e.ID
}

func ptr[T any](v T) *T { return &v }

func (s *ServiceSuite) TestGradeCompletesEnrollment() {
	eid := s.seed(models.StateActive, nil)

	e, err := s.svc.UpdateEnrollment(s.ctx, eid, models.Update{State: ptr(models.StateCompleted), FinalScore: ptr(85.0)})
	s.Require().NoError(err)
	s.Equal(models.StateCompleted, e.State)

	stored, _ := s.store.FindByID(s.ctx, eid)
	s.Equal(85.0, *stored.FinalScore)
	s.Require().Len(s.recorder.events, 1)
	s.Equal(audit.EventEnrollmentUpdated, s.recorder.events[0].Type)
	s.Equal("85", s.recorder.events[0].Attributes["final_score"])
}

func (s *ServiceSuite) TestScoreOutsideScaleIsValidationError() {
	eid := s.seed(models.StateActive, nil)
	_, err := s.svc.UpdateEnrollment(s.ctx, eid, models.Update{State: ptr(models.StateCompleted), FinalScore: ptr(850.0)})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestFrozenEnrollmentRejected() {
	eid := s.seed(models.StateCancelled, nil)
	_, err := s.svc.UpdateEnrollment(s.ctx, eid, models.Update{State: ptr(models.StateActive)})
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	s.Empty(s.recorder.events)
}

func (s *ServiceSuite) TestUnknownEnrollmentNotFound() {
	_, err := s.svc.UpdateEnrollment(s.ctx, id.EnrollmentID(uuid.New()), models.Update{State: ptr(models.StateActive)})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestAuditFailureRollsBack() {
	eid := s.seed(models.StateActive, nil)
	s.recorder.err = errors.New("outbox down")

	_, err := s.svc.UpdateEnrollment(s.ctx, eid, models.Update{State: ptr(models.StateCompleted), FinalScore: ptr(90.0)})
	s.Require().Error(err)

	stored, _ := s.store.FindByID(s.ctx, eid)
	s.Equal(models.StateActive, stored.State, "update must not commit without its audit entry")
}

func (s *ServiceSuite) TestNilIDIsBadRequest() {
	_, err := s.svc.Get(s.ctx, id.EnrollmentID{})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}
