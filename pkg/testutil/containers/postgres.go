//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"academy/internal/platform/database"
	"academy/migrations"
	id "academy/pkg/domain"
)

// PostgresContainer wraps a testcontainers Postgres instance.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container with migrations applied.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("academy_test"),
		postgres.WithUsername("academy"),
		postgres.WithPassword("academy_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	if _, err := database.Migrate(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	// No t.Cleanup: the Manager shares the container across suites and Ryuk
	// removes it when the test process exits.
	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateAll clears every module table and resets the sequence counters.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	if _, err := p.DB.ExecContext(ctx,
		"TRUNCATE TABLE outbox, credentials, enrollments, offerings, courses, persons CASCADE"); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if _, err := p.DB.ExecContext(ctx, "UPDATE sequence_counters SET value = 0"); err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	return nil
}

func (p *PostgresContainer) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.DB.ExecContext(ctx, query, args...)
}

func (p *PostgresContainer) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.DB.QueryRowContext(ctx, query, args...)
}

// CreateOffering inserts a course and one offering of it.
func (p *PostgresContainer) CreateOffering(ctx context.Context, t testing.TB, courseName string) id.OfferingID {
	t.Helper()
	courseID := uuid.New()
	offeringID := uuid.New()
	if _, err := p.Exec(ctx, `INSERT INTO courses (id, name) VALUES ($1, $2)`, courseID, courseName); err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}
	if _, err := p.Exec(ctx, `INSERT INTO offerings (id, course_id, label) VALUES ($1, $2, $3)`,
		offeringID, courseID, "2026-S1"); err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}
	return id.OfferingID(offeringID)
}

// CreatePerson inserts a learner with a unique email.
func (p *PostgresContainer) CreatePerson(ctx context.Context, t testing.TB, displayName string) id.PersonID {
	t.Helper()
	personID := uuid.New()
	if _, err := p.Exec(ctx, `INSERT INTO persons (id, display_name, email) VALUES ($1, $2, $3)`,
		personID, displayName, "learner-"+personID.String()+"@example.com"); err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}
	return id.PersonID(personID)
}

// CreateEnrollment inserts an enrollment in the given state. A nil score leaves it ungraded.
func (p *PostgresContainer) CreateEnrollment(ctx context.Context, t testing.TB, personID id.PersonID, offeringID id.OfferingID, state string, finalScore *float64) id.EnrollmentID {
	t.Helper()
	enrollmentID := uuid.New()
	if _, err := p.Exec(ctx, `
		INSERT INTO enrollments (id, person_id, offering_id, state, final_score)
		VALUES ($1, $2, $3, $4, $5)
	`, enrollmentID, uuid.UUID(personID), uuid.UUID(offeringID), state, finalScore); err != nil {
		t.Fatalf("CreateEnrollment: %v", err)
	}
	return id.EnrollmentID(enrollmentID)
}
