package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"academy/internal/credential/models"
	enrollmentmodels "academy/internal/enrollment/models"
	"academy/internal/platform/database"
	id "academy/pkg/domain"
	"academy/pkg/platform/sentinel"
	txcontext "academy/pkg/platform/tx"
)

// PostgresStore is the durable ledger. One credential per enrollment and
// unique tokens are enforced by constraints, not by reads.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const credentialColumns = `cr.id, cr.enrollment_id, cr.person_id, cr.offering_id, cr.token, cr.sequence_no,
	cr.issued_at, cr.attested, cr.revoked, cr.revoked_at, cr.revoked_reason`

// Insert writes c unless the enrollment already has a credential, in which
// case the existing row is returned with created=false.
func (s *PostgresStore) Insert(ctx context.Context, c *models.Credential) (*models.Credential, bool, error) {
	query := `
		INSERT INTO credentials (id, enrollment_id, person_id, offering_id, token, sequence_no,
			issued_at, attested, revoked, revoked_at, revoked_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (enrollment_id) DO NOTHING
		RETURNING id
	`
	var inserted uuid.UUID
	err := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(c.ID), uuid.UUID(c.EnrollmentID), uuid.UUID(c.PersonID), uuid.UUID(c.OfferingID),
		c.Token, c.SequenceNo, c.IssuedAt, c.Attested, c.Revoked, c.RevokedAt, nullString(c.RevokedReason),
	).Scan(&inserted)
	switch {
	case err == nil:
		out := *c
		return &out, true, nil
	case errors.Is(err, sql.ErrNoRows):
		existing, err := s.FindByEnrollment(ctx, c.EnrollmentID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case database.IsUniqueViolation(err, "credentials_token_key"):
		return nil, false, fmt.Errorf("credential token: %w", sentinel.ErrAlreadyUsed)
	default:
		return nil, false, database.Classify(err, "insert credential")
	}
}

func (s *PostgresStore) FindByID(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials cr WHERE cr.id = $1`
	return s.findOne(ctx, "find credential", query, uuid.UUID(credentialID))
}

// FindForUpdate row-locks the credential. Only meaningful inside a transaction.
func (s *PostgresStore) FindForUpdate(ctx context.Context, credentialID id.CredentialID) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials cr WHERE cr.id = $1 FOR UPDATE`
	return s.findOne(ctx, "lock credential", query, uuid.UUID(credentialID))
}

func (s *PostgresStore) FindByEnrollment(ctx context.Context, enrollmentID id.EnrollmentID) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials cr WHERE cr.enrollment_id = $1`
	return s.findOne(ctx, "find credential by enrollment", query, uuid.UUID(enrollmentID))
}

func (s *PostgresStore) findOne(ctx context.Context, op, query string, arg any) (*models.Credential, error) {
	c, err := scanCredential(txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, database.Classify(err, op)
	}
	return c, nil
}

// Update persists the mutable fields: sequence number and revocation. The
// token and issuance data are never rewritten.
func (s *PostgresStore) Update(ctx context.Context, c *models.Credential) error {
	query := `
		UPDATE credentials
		SET sequence_no = $2, revoked = $3, revoked_at = $4, revoked_reason = $5
		WHERE id = $1
	`
	res, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID), c.SequenceNo, c.Revoked, c.RevokedAt, nullString(c.RevokedReason),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("credential sequence number: %w", sentinel.ErrConflict)
		}
		return database.Classify(err, "update credential")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return database.Classify(err, "update credential")
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByPerson(ctx context.Context, personID id.PersonID) ([]*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials cr WHERE cr.person_id = $1 ORDER BY cr.issued_at DESC, cr.id`
	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(personID))
	if err != nil {
		return nil, database.Classify(err, "list credentials")
	}
	defer rows.Close()

	var out []*models.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, database.Classify(err, "scan credential")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(err, "iterate credentials")
	}
	return out, nil
}

// ListOffering joins enrollments with their credentials. The state filter and
// issuance window are compiled into bound parameters.
func (s *PostgresStore) ListOffering(ctx context.Context, offeringID id.OfferingID, f models.OfferingFilter) ([]models.OfferingRow, error) {
	exec := txcontext.ExecutorFor(ctx, s.db)

	var exists bool
	if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM offerings WHERE id = $1)`, uuid.UUID(offeringID)).Scan(&exists); err != nil {
		return nil, database.Classify(err, "find offering")
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}

	query, args := buildOfferingQuery(offeringID, f)
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, database.Classify(err, "list offering credentials")
	}
	defer rows.Close()

	var out []models.OfferingRow
	for rows.Next() {
		row, err := scanOfferingRow(rows)
		if err != nil {
			return nil, database.Classify(err, "scan offering row")
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(err, "iterate offering rows")
	}
	return out, nil
}

func buildOfferingQuery(offeringID id.OfferingID, f models.OfferingFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`
		SELECT e.id, e.person_id, e.offering_id, e.state, e.final_score, e.credential_issued,
			e.credential_issued_at, e.created_at, e.updated_at, p.display_name, c.name, o.label, ` + credentialColumns + `
		FROM enrollments e
		JOIN persons p ON p.id = e.person_id
		JOIN offerings o ON o.id = e.offering_id
		JOIN courses c ON c.id = o.course_id
		LEFT JOIN credentials cr ON cr.enrollment_id = e.id
		WHERE e.offering_id = $1`)
	args := []any{uuid.UUID(offeringID)}

	if len(f.States) > 0 {
		states := make([]string, len(f.States))
		for i, st := range f.States {
			states[i] = string(st)
		}
		args = append(args, pq.Array(states))
		fmt.Fprintf(&b, " AND e.state = ANY($%d)", len(args))
	}
	if f.IssuedFrom != nil {
		args = append(args, *f.IssuedFrom)
		fmt.Fprintf(&b, " AND cr.issued_at >= $%d", len(args))
	}
	if f.IssuedTo != nil {
		args = append(args, *f.IssuedTo)
		fmt.Fprintf(&b, " AND cr.issued_at <= $%d", len(args))
	}
	b.WriteString(" ORDER BY e.created_at, e.id")
	return b.String(), args
}

// FindVerification resolves a token to its public projection.
func (s *PostgresStore) FindVerification(ctx context.Context, token string) (*models.VerificationRecord, error) {
	query := `
		SELECT cr.id, c.name, cr.issued_at, cr.revoked
		FROM credentials cr
		JOIN offerings o ON o.id = cr.offering_id
		JOIN courses c ON c.id = o.course_id
		WHERE cr.token = $1
	`
	var rec models.VerificationRecord
	var cid uuid.UUID
	err := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, query, token).
		Scan(&cid, &rec.CourseName, &rec.IssuedAt, &rec.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, database.Classify(err, "find verification")
	}
	rec.CredentialID = id.CredentialID(cid)
	rec.IssuedAt = rec.IssuedAt.UTC()
	return &rec, nil
}

type credentialRow interface {
	Scan(dest ...any) error
}

func scanCredential(row credentialRow) (*models.Credential, error) {
	var c models.Credential
	var cid, eid, pid, oid uuid.UUID
	var seq sql.NullInt64
	var revokedAt sql.NullTime
	var reason sql.NullString
	if err := row.Scan(&cid, &eid, &pid, &oid, &c.Token, &seq, &c.IssuedAt, &c.Attested, &c.Revoked, &revokedAt, &reason); err != nil {
		return nil, err
	}
	c.ID, c.EnrollmentID, c.PersonID, c.OfferingID = id.CredentialID(cid), id.EnrollmentID(eid), id.PersonID(pid), id.OfferingID(oid)
	applyNullable(&c, seq, revokedAt, reason)
	c.IssuedAt = c.IssuedAt.UTC()
	return &c, nil
}

func scanOfferingRow(row credentialRow) (models.OfferingRow, error) {
	var d enrollmentmodels.Detail
	var eid, pid, oid uuid.UUID
	var state string
	var score sql.NullFloat64
	var enrollmentIssuedAt sql.NullTime

	var cid, ceid, cpid, coid uuid.NullUUID
	var token sql.NullString
	var seq sql.NullInt64
	var issuedAt, revokedAt sql.NullTime
	var attested, revoked sql.NullBool
	var reason sql.NullString

	if err := row.Scan(
		&eid, &pid, &oid, &state, &score, &d.CredentialIssued, &enrollmentIssuedAt, &d.CreatedAt, &d.UpdatedAt,
		&d.PersonName, &d.CourseName, &d.OfferingLabel,
		&cid, &ceid, &cpid, &coid, &token, &seq, &issuedAt, &attested, &revoked, &revokedAt, &reason,
	); err != nil {
		return models.OfferingRow{}, err
	}

	d.ID, d.PersonID, d.OfferingID = id.EnrollmentID(eid), id.PersonID(pid), id.OfferingID(oid)
	d.State = enrollmentmodels.State(state)
	if score.Valid {
		v := score.Float64
		d.FinalScore = &v
	}
	if enrollmentIssuedAt.Valid {
		t := enrollmentIssuedAt.Time.UTC()
		d.CredentialIssuedAt = &t
	}

	out := models.OfferingRow{Enrollment: d}
	if cid.Valid {
		c := &models.Credential{
			ID:           id.CredentialID(cid.UUID),
			EnrollmentID: id.EnrollmentID(ceid.UUID),
			PersonID:     id.PersonID(cpid.UUID),
			OfferingID:   id.OfferingID(coid.UUID),
			Token:        token.String,
			IssuedAt:     issuedAt.Time.UTC(),
			Attested:     attested.Bool,
			Revoked:      revoked.Bool,
		}
		applyNullable(c, seq, revokedAt, reason)
		out.Credential = c
	}
	return out, nil
}

func applyNullable(c *models.Credential, seq sql.NullInt64, revokedAt sql.NullTime, reason sql.NullString) {
	if seq.Valid {
		v := seq.Int64
		c.SequenceNo = &v
	}
	if revokedAt.Valid {
		t := revokedAt.Time.UTC()
		c.RevokedAt = &t
	}
	c.RevokedReason = reason.String
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
