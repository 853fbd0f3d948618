package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"academy/internal/enrollment/models"
	id "academy/pkg/domain"
)

// Store is the write side of the in-memory enrollment store.
type Store interface {
	SeedPerson(p models.Person)
	SeedCourse(c models.Course)
	SeedOffering(o models.Offering)
	Create(ctx context.Context, e *models.Enrollment) error
}

// Fixed IDs so tokengen output and curl examples stay valid across restarts.
var (
	DemoCourseID   = id.CourseID(uuid.MustParse("6f1c2a0e-0b1d-4c43-9d3e-1a2b3c4d5e01"))
	DemoOfferingID = id.OfferingID(uuid.MustParse("6f1c2a0e-0b1d-4c43-9d3e-1a2b3c4d5e02"))
)

type demoLearner struct {
	personID     string
	enrollmentID string
	name         string
	email        string
	state        models.State
	score        *float64
}

// Seeder populates in-memory stores with demo data
type Seeder struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// New creates a new seeder
func New(store Store, logger *slog.Logger) *Seeder {
	return &Seeder{store: store, now: time.Now, logger: logger}
}

// SeedAll populates one course offering with learners in every listing bucket.
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.InfoContext(ctx, "seeding demo data...")

	s.store.SeedCourse(models.Course{ID: DemoCourseID, Name: "Foundations of Data Engineering"})
	s.store.SeedOffering(models.Offering{ID: DemoOfferingID, CourseID: DemoCourseID, Label: "Spring 2026"})

	learners := demoLearners()
	now := s.now().UTC()
	for _, l := range learners {
		personID := id.PersonID(uuid.MustParse(l.personID))
		s.store.SeedPerson(models.Person{ID: personID, DisplayName: l.name, Email: l.email})

		e := &models.Enrollment{
			ID:         id.EnrollmentID(uuid.MustParse(l.enrollmentID)),
			PersonID:   personID,
			OfferingID: DemoOfferingID,
			State:      l.state,
			FinalScore: l.score,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.Create(ctx, e); err != nil {
			return fmt.Errorf("failed to seed enrollment for %s: %w", l.email, err)
		}
		s.logger.DebugContext(ctx, "seeded enrollment",
			"enrollment_id", e.ID.String(),
			"person_id", personID.String(),
			"state", string(e.State),
		)
	}

	s.logger.InfoContext(ctx, "demo data seeded successfully",
		"offering_id", DemoOfferingID.String(),
		"enrollments", len(learners),
	)
	return nil
}

func demoLearners() []demoLearner {
	score := func(v float64) *float64 { return &v }
	return []demoLearner{
		{"0b7f6c1e-5a43-4f8e-9c2d-000000000001", "0b7f6c1e-5a43-4f8e-9c2d-100000000001", "Alice Anderson", "alice@example.com", models.StateCompleted, score(92)},
		{"0b7f6c1e-5a43-4f8e-9c2d-000000000002", "0b7f6c1e-5a43-4f8e-9c2d-100000000002", "Bob Brown", "bob@example.com", models.StateCompleted, score(70)},
		{"0b7f6c1e-5a43-4f8e-9c2d-000000000003", "0b7f6c1e-5a43-4f8e-9c2d-100000000003", "Charlie Chen", "charlie@example.com", models.StateCompleted, score(64.5)},
		{"0b7f6c1e-5a43-4f8e-9c2d-000000000004", "0b7f6c1e-5a43-4f8e-9c2d-100000000004", "Diana Davis", "diana@example.com", models.StateActive, nil},
		{"0b7f6c1e-5a43-4f8e-9c2d-000000000005", "0b7f6c1e-5a43-4f8e-9c2d-100000000005", "Eve Evans", "eve@example.com", models.StateCancelled, nil},
	}
}
