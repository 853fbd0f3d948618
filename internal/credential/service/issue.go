package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"academy/internal/credential/metrics"
	"academy/internal/credential/models"
	enrollment "academy/internal/enrollment/models"
	"academy/internal/platform/tracer"
	id "academy/pkg/domain"
	dErrors "academy/pkg/domain-errors"
	"academy/pkg/platform/audit"
	"academy/pkg/platform/sentinel"
	"academy/pkg/requestcontext"
)

// Issue creates the credential for an eligible enrollment. Calling it again,
// concurrently or later, returns the existing credential with Created=false.
//
// The enrollment row lock serializes issuers of one enrollment; the unique
// constraint on credentials.enrollment_id backs it up.
func (s *Service) Issue(ctx context.Context, enrollmentID id.EnrollmentID) (*models.IssueResult, error) {
	if enrollmentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "enrollment ID required")
	}
	ctx, span := s.tracer.Start(ctx, tracer.SpanIssue, tracer.String(tracer.AttrEnrollmentID, enrollmentID.String()))
	start := time.Now()

	var result *models.IssueResult
	err := s.withRetry(ctx, "issue", func(attempt int) error {
		if attempt > 1 {
			span.AddEvent(tracer.EventIssueRetry, tracer.Int64(tracer.AttrAttempt, int64(attempt)))
		}
		var err error
		result, err = s.issueOnce(ctx, enrollmentID)
		return err
	})
	s.metrics.ObserveIssue(issueOutcome(result, err), time.Since(start).Seconds())
	if err != nil {
		span.End(err)
		s.logger.WarnContext(ctx, "credential issuance failed",
			"enrollment_id", enrollmentID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}

	span.SetAttributes(
		tracer.String(tracer.AttrCredentialID, result.Credential.ID.String()),
		tracer.Bool(tracer.AttrCreated, result.Created),
	)
	span.End(nil)
	s.logger.InfoContext(ctx, "credential issued",
		"credential_id", result.Credential.ID.String(),
		"enrollment_id", enrollmentID.String(),
		"created", result.Created,
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

func (s *Service) issueOnce(ctx context.Context, enrollmentID id.EnrollmentID) (*models.IssueResult, error) {
	var result *models.IssueResult
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		e, err := s.enrollments.FindForUpdate(txCtx, enrollmentID)
		if err != nil {
			return wrapStoreErr(err, "enrollment not found", "failed to lock enrollment")
		}

		existing, err := s.store.FindByEnrollment(txCtx, e.ID)
		switch {
		case err == nil:
			result = s.existing(existing)
			return nil
		case !errors.Is(err, sentinel.ErrNotFound):
			return wrapStoreErr(err, "credential not found", "failed to read credential")
		}

		if err := s.checkEligible(e); err != nil {
			return err
		}

		token, err := s.tokens.Generate()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate verification token")
		}
		now := requestcontext.Now(txCtx)
		c, err := models.NewCredential(id.NewCredentialID(), e, token, now)
		if err != nil {
			return err
		}

		stored, created, err := s.store.Insert(txCtx, c)
		if err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return fmt.Errorf("%w: %w", errTokenCollision, err)
			}
			return wrapStoreErr(err, "credential not found", "failed to insert credential")
		}
		if !created {
			result = s.existing(stored)
			return nil
		}

		if err := e.MarkCredentialIssued(now); err != nil {
			return err
		}
		if err := s.enrollments.Update(txCtx, e); err != nil {
			return wrapStoreErr(err, "enrollment not found", "failed to flag enrollment")
		}
		if err := s.record(txCtx, issuedEvent(stored)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record issuance")
		}
		result = &models.IssueResult{
			Credential:      stored,
			Created:         true,
			VerificationURL: s.tokens.BuildVerificationURL(stored.Token),
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}
	return result, nil
}

func (s *Service) existing(c *models.Credential) *models.IssueResult {
	return &models.IssueResult{
		Credential:      c,
		Created:         false,
		VerificationURL: s.tokens.BuildVerificationURL(c.Token),
	}
}

// checkEligible runs under the enrollment lock, so the decision cannot be
// invalidated by a concurrent grading update.
func (s *Service) checkEligible(e *enrollment.Enrollment) error {
	ok, err := s.policy.IsEligible(e)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	switch {
	case e.CredentialIssued:
		return dErrors.New(dErrors.CodeInvariantViolation, "enrollment is flagged as credentialed but has no credential")
	case e.State != enrollment.StateCompleted:
		return dErrors.New(dErrors.CodeNotEligible, fmt.Sprintf("enrollment is %s, not completed", e.State))
	default:
		return dErrors.New(dErrors.CodeNotEligible, fmt.Sprintf("final score is below the passing score of %v", s.policy.PassingScore))
	}
}

func issuedEvent(c *models.Credential) audit.Event {
	return audit.Event{
		Type:         audit.EventCredentialIssued,
		PersonID:     c.PersonID.String(),
		EnrollmentID: c.EnrollmentID.String(),
		CredentialID: c.ID.String(),
		Attributes:   map[string]string{"offering_id": c.OfferingID.String()},
	}
}

func issueOutcome(result *models.IssueResult, err error) string {
	switch {
	case err == nil && result.Created:
		return metrics.OutcomeCreated
	case err == nil:
		return metrics.OutcomeExisting
	case dErrors.HasCode(err, dErrors.CodeNotEligible):
		return metrics.OutcomeNotEligible
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		return metrics.OutcomeInvariant
	case dErrors.HasCode(err, dErrors.CodeUnavailable):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeError
	}
}
