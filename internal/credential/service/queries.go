package service

import (
	"context"

	"academy/internal/credential/eligibility"
	"academy/internal/credential/models"
	"academy/internal/platform/tracer"
	id "academy/pkg/domain"
	dErrors "academy/pkg/domain-errors"
	"academy/pkg/requestcontext"
)

func (s *Service) Get(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	if credentialID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "credential ID required")
	}
	c, err := s.store.FindByID(ctx, credentialID)
	if err != nil {
		return nil, wrapStoreErr(err, "credential not found", "failed to load credential")
	}
	return c, nil
}

// GetForOwner loads a credential on behalf of a learner. Another person's
// credential is reported as not found.
func (s *Service) GetForOwner(ctx context.Context, credentialID id.CredentialID, personID id.PersonID) (*models.Credential, error) {
	c, err := s.Get(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if !c.OwnedBy(personID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
	}
	return c, nil
}

func (s *Service) ListForPerson(ctx context.Context, personID id.PersonID) ([]*models.Credential, error) {
	if personID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "person ID required")
	}
	list, err := s.store.ListByPerson(ctx, personID)
	if err != nil {
		return nil, wrapStoreErr(err, "person not found", "failed to list credentials")
	}
	return list, nil
}

// ListForOffering classifies every enrollment of the offering into a bucket
// and returns the requested page. Rows whose enrollment breaks an invariant
// are listed as not eligible and logged.
func (s *Service) ListForOffering(ctx context.Context, offeringID id.OfferingID, f models.OfferingFilter) (*models.OfferingPage, error) {
	if offeringID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "offering ID required")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	f.Normalize()

	ctx, span := s.tracer.Start(ctx, tracer.SpanListOffering, tracer.String(tracer.AttrOfferingID, offeringID.String()))
	rows, err := s.store.ListOffering(ctx, offeringID, f)
	if err != nil {
		err = wrapStoreErr(err, "offering not found", "failed to list offering")
		span.End(err)
		return nil, err
	}

	matched := make([]models.OfferingRow, 0, len(rows))
	for _, row := range rows {
		bucket, err := s.policy.Classify(&row.Enrollment.Enrollment, row.Credential != nil)
		if err != nil {
			s.metrics.IncListingIntegrity()
			s.logger.WarnContext(ctx, "enrollment violates eligibility invariants",
				"enrollment_id", row.Enrollment.ID.String(),
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			bucket = eligibility.BucketNotEligible
		}
		if !f.MatchesBucket(bucket) {
			continue
		}
		row.Bucket = bucket
		matched = append(matched, row)
	}

	page := &models.OfferingPage{Total: len(matched), Rows: []models.OfferingRow{}}
	if f.Offset < len(matched) {
		end := min(f.Offset+f.Limit, len(matched))
		page.Rows = matched[f.Offset:end]
	}
	span.SetAttributes(tracer.Int64(tracer.AttrRowCount, int64(len(page.Rows))))
	span.End(nil)
	return page, nil
}
