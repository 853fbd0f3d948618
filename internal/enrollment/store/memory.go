package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"academy/internal/enrollment/models"
	id "academy/pkg/domain"
	"academy/pkg/platform/sentinel"
	psync "academy/pkg/platform/sync"
	txcontext "academy/pkg/platform/tx"
)

// InMemory keeps enrollments and the read-only catalog they reference.
// Row locks are taken through the in-process transaction in ctx and held
// until it finishes; writes apply on commit.
type InMemory struct {
	mu          sync.RWMutex
	enrollments map[id.EnrollmentID]models.Enrollment
	pairs       map[pairKey]id.EnrollmentID
	persons     map[id.PersonID]models.Person
	courses     map[id.CourseID]models.Course
	offerings   map[id.OfferingID]models.Offering

	rows *psync.KeyedMutex
}

type pairKey struct {
	person   id.PersonID
	offering id.OfferingID
}

func NewInMemory() *InMemory {
	return &InMemory{
		enrollments: make(map[id.EnrollmentID]models.Enrollment),
		pairs:       make(map[pairKey]id.EnrollmentID),
		persons:     make(map[id.PersonID]models.Person),
		courses:     make(map[id.CourseID]models.Course),
		offerings:   make(map[id.OfferingID]models.Offering),
		rows:        psync.NewKeyedMutex(),
	}
}

func (s *InMemory) SeedPerson(p models.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persons[p.ID] = p
}

func (s *InMemory) SeedCourse(c models.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = c
}

func (s *InMemory) SeedOffering(o models.Offering) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offerings[o.ID] = o
}

// Create inserts a new enrollment. A person enrolls in an offering at most once.
func (s *InMemory) Create(_ context.Context, e *models.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.enrollments[e.ID]; ok {
		return fmt.Errorf("enrollment %s: %w", e.ID, sentinel.ErrAlreadyUsed)
	}
	key := pairKey{person: e.PersonID, offering: e.OfferingID}
	if _, ok := s.pairs[key]; ok {
		return fmt.Errorf("person already enrolled in offering: %w", sentinel.ErrAlreadyUsed)
	}
	s.enrollments[e.ID] = clone(*e)
	s.pairs[key] = e.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, enrollmentID id.EnrollmentID) (*models.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.enrollments[enrollmentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := clone(e)
	return &cp, nil
}

// FindForUpdate locks the enrollment for the rest of the transaction in ctx.
func (s *InMemory) FindForUpdate(ctx context.Context, enrollmentID id.EnrollmentID) (*models.Enrollment, error) {
	txcontext.LockForTx(ctx, s.rows, enrollmentID.String())
	return s.FindByID(ctx, enrollmentID)
}

// Update replaces the stored enrollment when the transaction commits.
func (s *InMemory) Update(ctx context.Context, e *models.Enrollment) error {
	s.mu.RLock()
	_, ok := s.enrollments[e.ID]
	s.mu.RUnlock()
	if !ok {
		return sentinel.ErrNotFound
	}
	cp := clone(*e)
	txcontext.AfterCommit(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.enrollments[cp.ID] = cp
	})
	return nil
}

func (s *InMemory) FindDetail(_ context.Context, enrollmentID id.EnrollmentID) (*models.Detail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.enrollments[enrollmentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	d := s.detailLocked(e)
	return &d, nil
}

// ListDetailsByOffering returns every enrollment of the offering ordered by creation.
func (s *InMemory) ListDetailsByOffering(_ context.Context, offeringID id.OfferingID) ([]models.Detail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.offerings[offeringID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	var out []models.Detail
	for _, e := range s.enrollments {
		if e.OfferingID == offeringID {
			out = append(out, s.detailLocked(e))
		}
	}
	slices.SortFunc(out, func(a, b models.Detail) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

func (s *InMemory) FindOffering(_ context.Context, offeringID id.OfferingID) (*models.Offering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.offerings[offeringID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &o, nil
}

func (s *InMemory) detailLocked(e models.Enrollment) models.Detail {
	offering := s.offerings[e.OfferingID]
	return models.Detail{
		Enrollment:    clone(e),
		PersonName:    s.persons[e.PersonID].DisplayName,
		CourseName:    s.courses[offering.CourseID].Name,
		OfferingLabel: offering.Label,
	}
}

func clone(e models.Enrollment) models.Enrollment {
	if e.FinalScore != nil {
		v := *e.FinalScore
		e.FinalScore = &v
	}
	if e.CredentialIssuedAt != nil {
		v := *e.CredentialIssuedAt
		e.CredentialIssuedAt = &v
	}
	return e
}
