package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"academy/internal/enrollment/models"
	"academy/internal/platform/database"
	id "academy/pkg/domain"
	"academy/pkg/platform/sentinel"
	txcontext "academy/pkg/platform/tx"
)

const checkViolation = "23514"

// PostgresStore persists enrollments in PostgreSQL. Every statement joins the
// transaction carried in ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const enrollmentColumns = `e.id, e.person_id, e.offering_id, e.state, e.final_score,
	e.credential_issued, e.credential_issued_at, e.created_at, e.updated_at`

const detailJoin = `
	FROM enrollments e
	JOIN persons p ON p.id = e.person_id
	JOIN offerings o ON o.id = e.offering_id
	JOIN courses c ON c.id = o.course_id`

func (s *PostgresStore) Create(ctx context.Context, e *models.Enrollment) error {
	query := `
		INSERT INTO enrollments (id, person_id, offering_id, state, final_score,
			credential_issued, credential_issued_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(e.ID), uuid.UUID(e.PersonID), uuid.UUID(e.OfferingID), string(e.State),
		e.FinalScore, e.CredentialIssued, e.CredentialIssuedAt, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("create enrollment: %w", sentinel.ErrAlreadyUsed)
		}
		return database.Classify(err, "create enrollment")
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, enrollmentID id.EnrollmentID) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.id = $1`
	return s.findOne(ctx, query, enrollmentID, "find enrollment")
}

// FindForUpdate row-locks the enrollment. Only meaningful inside a transaction.
func (s *PostgresStore) FindForUpdate(ctx context.Context, enrollmentID id.EnrollmentID) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.id = $1 FOR UPDATE`
	return s.findOne(ctx, query, enrollmentID, "lock enrollment")
}

func (s *PostgresStore) findOne(ctx context.Context, query string, enrollmentID id.EnrollmentID, op string) (*models.Enrollment, error) {
	row := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(enrollmentID))
	e, err := scanEnrollment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, database.Classify(err, op)
	}
	return e, nil
}

func (s *PostgresStore) Update(ctx context.Context, e *models.Enrollment) error {
	query := `
		UPDATE enrollments
		SET state = $2, final_score = $3, credential_issued = $4,
			credential_issued_at = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(e.ID), string(e.State), e.FinalScore, e.CredentialIssued, e.CredentialIssuedAt, e.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
			return fmt.Errorf("update enrollment %s: %w", pgErr.ConstraintName, sentinel.ErrInvalidState)
		}
		return database.Classify(err, "update enrollment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return database.Classify(err, "update enrollment")
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindDetail(ctx context.Context, enrollmentID id.EnrollmentID) (*models.Detail, error) {
	query := `SELECT ` + enrollmentColumns + `, p.display_name, c.name, o.label` + detailJoin + ` WHERE e.id = $1`
	d, err := scanDetail(txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(enrollmentID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, database.Classify(err, "find enrollment detail")
	}
	return d, nil
}

func (s *PostgresStore) ListDetailsByOffering(ctx context.Context, offeringID id.OfferingID) ([]models.Detail, error) {
	if _, err := s.FindOffering(ctx, offeringID); err != nil {
		return nil, err
	}
	query := `SELECT ` + enrollmentColumns + `, p.display_name, c.name, o.label` + detailJoin +
		` WHERE e.offering_id = $1 ORDER BY e.created_at, e.id`
	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(offeringID))
	if err != nil {
		return nil, database.Classify(err, "list enrollments")
	}
	defer rows.Close()

	var out []models.Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, database.Classify(err, "scan enrollment")
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(err, "iterate enrollments")
	}
	return out, nil
}

func (s *PostgresStore) FindOffering(ctx context.Context, offeringID id.OfferingID) (*models.Offering, error) {
	var o models.Offering
	var oid, cid uuid.UUID
	err := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, course_id, label FROM offerings WHERE id = $1`, uuid.UUID(offeringID),
	).Scan(&oid, &cid, &o.Label)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, database.Classify(err, "find offering")
	}
	o.ID, o.CourseID = id.OfferingID(oid), id.CourseID(cid)
	return &o, nil
}

type enrollmentRow interface {
	Scan(dest ...any) error
}

func scanEnrollment(row enrollmentRow) (*models.Enrollment, error) {
	var e models.Enrollment
	var eid, pid, oid uuid.UUID
	var state string
	var score sql.NullFloat64
	var issuedAt sql.NullTime
	if err := row.Scan(&eid, &pid, &oid, &state, &score, &e.CredentialIssued, &issuedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	fill(&e, eid, pid, oid, state, score, issuedAt)
	return &e, nil
}

func scanDetail(row enrollmentRow) (*models.Detail, error) {
	var d models.Detail
	var eid, pid, oid uuid.UUID
	var state string
	var score sql.NullFloat64
	var issuedAt sql.NullTime
	if err := row.Scan(&eid, &pid, &oid, &state, &score, &d.CredentialIssued, &issuedAt, &d.CreatedAt, &d.UpdatedAt,
		&d.PersonName, &d.CourseName, &d.OfferingLabel); err != nil {
		return nil, err
	}
	fill(&d.Enrollment, eid, pid, oid, state, score, issuedAt)
	return &d, nil
}

func fill(e *models.Enrollment, eid, pid, oid uuid.UUID, state string, score sql.NullFloat64, issuedAt sql.NullTime) {
	e.ID = id.EnrollmentID(eid)
	e.PersonID = id.PersonID(pid)
	e.OfferingID = id.OfferingID(oid)
	e.State = models.State(state)
	if score.Valid {
		v := score.Float64
		e.FinalScore = &v
	}
	if issuedAt.Valid {
		t := issuedAt.Time.UTC()
		e.CredentialIssuedAt = &t
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
}
