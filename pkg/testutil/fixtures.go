package testutil

import (
	"time"

	"github.com/google/uuid"

	credential "academy/internal/credential/models"
	enrollment "academy/internal/enrollment/models"
	id "academy/pkg/domain"
)

// TestIDs provides convenient pre-generated IDs for tests.
// Use these for deterministic test data.
var TestIDs = struct {
	PersonID1     id.PersonID
	PersonID2     id.PersonID
	CourseID1     id.CourseID
	OfferingID1   id.OfferingID
	EnrollmentID1 id.EnrollmentID
	EnrollmentID2 id.EnrollmentID
	CredentialID1 id.CredentialID
}{
	PersonID1:     id.PersonID(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
	PersonID2:     id.PersonID(uuid.MustParse("22222222-2222-2222-2222-222222222222")),
	CourseID1:     id.CourseID(uuid.MustParse("cccc0000-0000-0000-0000-000000000001")),
	OfferingID1:   id.OfferingID(uuid.MustParse("0ff00000-0000-0000-0000-000000000001")),
	EnrollmentID1: id.EnrollmentID(uuid.MustParse("eeee0000-0000-0000-0000-000000000001")),
	EnrollmentID2: id.EnrollmentID(uuid.MustParse("eeee0000-0000-0000-0000-000000000002")),
	CredentialID1: id.CredentialID(uuid.MustParse("c4ed0000-0000-0000-0000-000000000001")),
}

// EnrollmentBuilder provides a fluent interface for building test enrollments.
type EnrollmentBuilder struct {
	enrollment *enrollment.Enrollment
}

// NewEnrollmentBuilder starts from an active, ungraded enrollment with fresh IDs.
func NewEnrollmentBuilder() *EnrollmentBuilder {
	now := time.Now()
	return &EnrollmentBuilder{
		enrollment: &enrollment.Enrollment{
			ID:         id.EnrollmentID(uuid.New()),
			PersonID:   id.PersonID(uuid.New()),
			OfferingID: id.OfferingID(uuid.New()),
			State:      enrollment.StateActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
}

func (b *EnrollmentBuilder) WithID(enrollmentID id.EnrollmentID) *EnrollmentBuilder {
	b.enrollment.ID = enrollmentID
	return b
}

func (b *EnrollmentBuilder) WithPersonID(personID id.PersonID) *EnrollmentBuilder {
	b.enrollment.PersonID = personID
	return b
}

func (b *EnrollmentBuilder) WithOfferingID(offeringID id.OfferingID) *EnrollmentBuilder {
	b.enrollment.OfferingID = offeringID
	return b
}

func (b *EnrollmentBuilder) WithState(state enrollment.State) *EnrollmentBuilder {
	b.enrollment.State = state
	return b
}

// Completed marks the enrollment completed with the given score.
func (b *EnrollmentBuilder) Completed(score float64) *EnrollmentBuilder {
	b.enrollment.State = enrollment.StateCompleted
	b.enrollment.FinalScore = &score
	return b
}

// WithScore sets the score without touching state, for building invalid rows.
func (b *EnrollmentBuilder) WithScore(score *float64) *EnrollmentBuilder {
	b.enrollment.FinalScore = score
	return b
}

func (b *EnrollmentBuilder) CredentialIssued(at time.Time) *EnrollmentBuilder {
	b.enrollment.CredentialIssued = true
	b.enrollment.CredentialIssuedAt = &at
	return b
}

func (b *EnrollmentBuilder) Build() *enrollment.Enrollment {
	return b.enrollment
}

// CredentialBuilder provides a fluent interface for building test credentials.
type CredentialBuilder struct {
	credential *credential.Credential
}

// NewCredentialBuilder starts from an attested, unrevoked credential with a random token.
func NewCredentialBuilder() *CredentialBuilder {
	return &CredentialBuilder{
		credential: &credential.Credential{
			ID:           id.NewCredentialID(),
			EnrollmentID: id.EnrollmentID(uuid.New()),
			PersonID:     id.PersonID(uuid.New()),
			OfferingID:   id.OfferingID(uuid.New()),
			Token:        "tok-" + uuid.NewString(),
			IssuedAt:     time.Now().UTC(),
			Attested:     true,
		},
	}
}

// ForEnrollment copies the enrollment's person and offering.
func (b *CredentialBuilder) ForEnrollment(e *enrollment.Enrollment) *CredentialBuilder {
	b.credential.EnrollmentID = e.ID
	b.credential.PersonID = e.PersonID
	b.credential.OfferingID = e.OfferingID
	return b
}

func (b *CredentialBuilder) WithID(credentialID id.CredentialID) *CredentialBuilder {
	b.credential.ID = credentialID
	return b
}

func (b *CredentialBuilder) WithToken(token string) *CredentialBuilder {
	b.credential.Token = token
	return b
}

func (b *CredentialBuilder) IssuedAt(t time.Time) *CredentialBuilder {
	b.credential.IssuedAt = t
	return b
}

func (b *CredentialBuilder) WithSequence(n int64) *CredentialBuilder {
	b.credential.SequenceNo = &n
	return b
}

func (b *CredentialBuilder) Revoked(at time.Time, reason string) *CredentialBuilder {
	b.credential.Revoked = true
	b.credential.RevokedAt = &at
	b.credential.RevokedReason = reason
	return b
}

func (b *CredentialBuilder) Build() *credential.Credential {
	return b.credential
}
