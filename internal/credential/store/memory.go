package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"academy/internal/credential/models"
	enrollmentmodels "academy/internal/enrollment/models"
	id "academy/pkg/domain"
	"academy/pkg/platform/sentinel"
	psync "academy/pkg/platform/sync"
	txcontext "academy/pkg/platform/tx"
)

// EnrollmentReader is the part of the enrollment store the in-memory ledger
// joins against.
type EnrollmentReader interface {
	FindDetail(ctx context.Context, enrollmentID id.EnrollmentID) (*enrollmentmodels.Detail, error)
	ListDetailsByOffering(ctx context.Context, offeringID id.OfferingID) ([]enrollmentmodels.Detail, error)
}

// InMemory is the process-local ledger. Uniqueness of enrollment and token is
// checked when a write is staged; callers serialize issuance per enrollment
// through the enrollment row lock, so a staged insert cannot race another
// insert for the same enrollment.
type InMemory struct {
	mu           sync.RWMutex
	byID         map[id.CredentialID]models.Credential
	byEnrollment map[id.EnrollmentID]id.CredentialID
	byToken      map[string]id.CredentialID
	sequences    map[int64]id.CredentialID

	rows        *psync.KeyedMutex
	enrollments EnrollmentReader
}

func NewInMemory(enrollments EnrollmentReader) *InMemory {
	return &InMemory{
		byID:         make(map[id.CredentialID]models.Credential),
		byEnrollment: make(map[id.EnrollmentID]id.CredentialID),
		byToken:      make(map[string]id.CredentialID),
		sequences:    make(map[int64]id.CredentialID),
		rows:         psync.NewKeyedMutex(),
		enrollments:  enrollments,
	}
}

// Insert stages c. If the enrollment already has a credential it is returned
// with created=false; a token already in use yields sentinel.ErrAlreadyUsed.
func (s *InMemory) Insert(ctx context.Context, c *models.Credential) (*models.Credential, bool, error) {
	s.mu.RLock()
	if existingID, ok := s.byEnrollment[c.EnrollmentID]; ok {
		existing := clone(s.byID[existingID])
		s.mu.RUnlock()
		return &existing, false, nil
	}
	if _, ok := s.byToken[c.Token]; ok {
		s.mu.RUnlock()
		return nil, false, fmt.Errorf("credential token: %w", sentinel.ErrAlreadyUsed)
	}
	s.mu.RUnlock()

	cp := clone(*c)
	txcontext.AfterCommit(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.byID[cp.ID] = cp
		s.byEnrollment[cp.EnrollmentID] = cp.ID
		s.byToken[cp.Token] = cp.ID
	})
	out := clone(*c)
	return &out, true, nil
}

func (s *InMemory) FindByID(_ context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[credentialID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := clone(c)
	return &cp, nil
}

// FindForUpdate locks the credential for the rest of the transaction in ctx.
func (s *InMemory) FindForUpdate(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	txcontext.LockForTx(ctx, s.rows, credentialID.String())
	return s.FindByID(ctx, credentialID)
}

func (s *InMemory) FindByEnrollment(_ context.Context, enrollmentID id.EnrollmentID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credentialID, ok := s.byEnrollment[enrollmentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := clone(s.byID[credentialID])
	return &cp, nil
}

// Update persists the mutable fields: sequence number and revocation.
func (s *InMemory) Update(ctx context.Context, c *models.Credential) error {
	s.mu.RLock()
	_, ok := s.byID[c.ID]
	if ok && c.SequenceNo != nil {
		if owner, taken := s.sequences[*c.SequenceNo]; taken && owner != c.ID {
			s.mu.RUnlock()
			return fmt.Errorf("sequence number %d: %w", *c.SequenceNo, sentinel.ErrConflict)
		}
	}
	s.mu.RUnlock()
	if !ok {
		return sentinel.ErrNotFound
	}

	cp := clone(*c)
	txcontext.AfterCommit(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		stored := s.byID[cp.ID]
		stored.SequenceNo = cp.SequenceNo
		stored.Revoked = cp.Revoked
		stored.RevokedAt = cp.RevokedAt
		stored.RevokedReason = cp.RevokedReason
		s.byID[cp.ID] = stored
		if cp.SequenceNo != nil {
			s.sequences[*cp.SequenceNo] = cp.ID
		}
	})
	return nil
}

// ListByPerson returns the person's credentials, newest first.
func (s *InMemory) ListByPerson(_ context.Context, personID id.PersonID) ([]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Credential
	for _, c := range s.byID {
		if c.PersonID == personID {
			cp := clone(c)
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.Credential) int {
		if c := b.IssuedAt.Compare(a.IssuedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

// ListOffering joins every enrollment of the offering with its credential and
// applies the state and issuance-window filters. Buckets are left unset.
func (s *InMemory) ListOffering(ctx context.Context, offeringID id.OfferingID, f models.OfferingFilter) ([]models.OfferingRow, error) {
	details, err := s.enrollments.ListDetailsByOffering(ctx, offeringID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]models.OfferingRow, 0, len(details))
	for _, d := range details {
		if !f.MatchesState(d.State) {
			continue
		}
		var cred *models.Credential
		if credentialID, ok := s.byEnrollment[d.ID]; ok {
			cp := clone(s.byID[credentialID])
			cred = &cp
		}
		if !f.MatchesIssued(cred) {
			continue
		}
		rows = append(rows, models.OfferingRow{Enrollment: d, Credential: cred})
	}
	return rows, nil
}

// FindVerification resolves a token to its public projection.
func (s *InMemory) FindVerification(ctx context.Context, token string) (*models.VerificationRecord, error) {
	s.mu.RLock()
	credentialID, ok := s.byToken[token]
	var c models.Credential
	if ok {
		c = s.byID[credentialID]
	}
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	d, err := s.enrollments.FindDetail(ctx, c.EnrollmentID)
	if err != nil {
		return nil, err
	}
	return &models.VerificationRecord{
		CredentialID: c.ID,
		CourseName:   d.CourseName,
		IssuedAt:     c.IssuedAt,
		Revoked:      c.Revoked,
	}, nil
}

func clone(c models.Credential) models.Credential {
	if c.SequenceNo != nil {
		v := *c.SequenceNo
		c.SequenceNo = &v
	}
	if c.RevokedAt != nil {
		v := *c.RevokedAt
		c.RevokedAt = &v
	}
	return c
}
