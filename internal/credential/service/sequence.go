package service

import (
	"context"
	"errors"

	"academy/internal/platform/tracer"
	id "academy/pkg/domain"
	dErrors "academy/pkg/domain-errors"
	"academy/pkg/platform/audit"
	"academy/pkg/platform/sentinel"
	"academy/pkg/requestcontext"
)

// EnsureSequenceNumber returns the credential's number in the named sequence,
// allocating it on first use. The allocation and the assignment commit
// together, so a failed assignment never burns a number.
func (s *Service) EnsureSequenceNumber(ctx context.Context, credentialID id.CredentialID, sequenceName string) (int64, error) {
	if credentialID.IsNil() {
		return 0, dErrors.New(dErrors.CodeBadRequest, "credential ID required")
	}
	c, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		return 0, wrapStoreErr(err, "credential not found", "failed to load credential")
	}
	if c.SequenceNo != nil {
		return *c.SequenceNo, nil
	}

	ctx, span := s.tracer.Start(ctx, tracer.SpanEnsureSequence, tracer.String(tracer.AttrCredentialID, credentialID.String()))
	var (
		number   int64
		assigned bool
	)
	err = s.withRetry(ctx, "ensure_sequence", func(int) error {
		assigned = false
		return wrapTxErr(s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			c, err := s.store.FindForUpdate(txCtx, credentialID)
			if err != nil {
				return wrapStoreErr(err, "credential not found", "failed to lock credential")
			}
			if c.SequenceNo != nil {
				number = *c.SequenceNo
				return nil
			}

			n, err := s.sequences.AllocateNext(txCtx, sequenceName)
			if err != nil {
				return err
			}
			if err := c.AssignSequence(n); err != nil {
				return err
			}
			if err := s.store.Update(txCtx, c); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "sequence number already assigned to another credential")
				}
				return wrapStoreErr(err, "credential not found", "failed to store sequence number")
			}
			if err := s.record(txCtx, audit.Event{
				Type:         audit.EventReceiptNumbered,
				PersonID:     c.PersonID.String(),
				EnrollmentID: c.EnrollmentID.String(),
				CredentialID: c.ID.String(),
				Attributes:   map[string]string{"sequence": sequenceName},
			}); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record sequence assignment")
			}
			number, assigned = n, true
			return nil
		}))
	})
	if err != nil {
		span.End(err)
		return 0, err
	}
	span.SetAttributes(tracer.Int64(tracer.AttrSequenceNo, number))
	span.End(nil)

	if assigned {
		s.metrics.IncSequenceAssigned()
		s.logger.InfoContext(ctx, "sequence number assigned",
			"credential_id", credentialID.String(),
			"sequence", sequenceName,
			"number", number,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return number, nil
}
