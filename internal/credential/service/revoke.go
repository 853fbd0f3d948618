package service

import (
	"context"
	"strings"

	"academy/internal/credential/models"
	"academy/internal/platform/tracer"
	id "academy/pkg/domain"
	dErrors "academy/pkg/domain-errors"
	"academy/pkg/platform/audit"
	"academy/pkg/platform/validation"
	"academy/pkg/requestcontext"
)

// Revoke flags the credential as revoked. The row and its token are kept, so
// the token is never handed out again. Revoking twice is a no-op.
func (s *Service) Revoke(ctx context.Context, credentialID id.CredentialID, reason string) (*models.Credential, error) {
	if credentialID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "credential ID required")
	}
	reason = strings.TrimSpace(reason)
	if err := validation.CheckStringLength("reason", reason, validation.MaxReasonLength); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, tracer.SpanRevoke, tracer.String(tracer.AttrCredentialID, credentialID.String()))

	var (
		revoked *models.Credential
		changed bool
	)
	err := s.withRetry(ctx, "revoke", func(int) error {
		return wrapTxErr(s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			c, err := s.store.FindForUpdate(txCtx, credentialID)
			if err != nil {
				return wrapStoreErr(err, "credential not found", "failed to lock credential")
			}
			changed = c.Revoke(reason, requestcontext.Now(txCtx))
			revoked = c
			if !changed {
				return nil
			}
			if err := s.store.Update(txCtx, c); err != nil {
				return wrapStoreErr(err, "credential not found", "failed to revoke credential")
			}
			if err := s.record(txCtx, audit.Event{
				Type:         audit.EventCredentialRevoked,
				PersonID:     c.PersonID.String(),
				EnrollmentID: c.EnrollmentID.String(),
				CredentialID: c.ID.String(),
				Reason:       reason,
			}); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record revocation")
			}
			return nil
		}))
	})
	span.End(err)
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.IncRevocation()
		s.logger.InfoContext(ctx, "credential revoked",
			"credential_id", credentialID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return revoked, nil
}
