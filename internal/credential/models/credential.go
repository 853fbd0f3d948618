package models

import (
	"strings"
	"time"

	enrollment "academy/internal/enrollment/models"
	id "academy/pkg/domain"
	dErrors "academy/pkg/domain-errors"
)

// Credential is the certificate issued against exactly one enrollment.
// The verification token is assigned at creation and never changes or gets
// reused, revoked or not.
type Credential struct {
	ID            id.CredentialID
	EnrollmentID  id.EnrollmentID
	PersonID      id.PersonID
	OfferingID    id.OfferingID
	Token         string
	SequenceNo    *int64
	IssuedAt      time.Time
	Attested      bool
	Revoked       bool
	RevokedAt     *time.Time
	RevokedReason string
}

// NewCredential mints a credential for an enrollment the caller has found eligible.
func NewCredential(credentialID id.CredentialID, e *enrollment.Enrollment, token string, now time.Time) (*Credential, error) {
	if credentialID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credential ID required")
	}
	if e == nil || e.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "enrollment required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verification token required")
	}
	return &Credential{
		ID:           credentialID,
		EnrollmentID: e.ID,
		PersonID:     e.PersonID,
		OfferingID:   e.OfferingID,
		Token:        token,
		IssuedAt:     now,
		Attested:     true,
	}, nil
}

// Revoke flags the credential. It reports false when already revoked so
// callers can skip the write and the audit event.
func (c *Credential) Revoke(reason string, now time.Time) bool {
	if c.Revoked {
		return false
	}
	c.Revoked = true
	c.RevokedAt = &now
	c.RevokedReason = reason
	return true
}

// AssignSequence sets the human-readable number once.
func (c *Credential) AssignSequence(n int64) error {
	if c.SequenceNo != nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "sequence number already assigned")
	}
	if n <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "sequence number must be positive")
	}
	c.SequenceNo = &n
	return nil
}

func (c *Credential) OwnedBy(personID id.PersonID) bool {
	return c.PersonID == personID
}

// IssueResult is the outcome of an issuance request. Created is false when
// the enrollment already had a credential and the existing one is returned.
type IssueResult struct {
	Credential      *Credential
	Created         bool
	VerificationURL string
}

// VerificationRecord is the projection the public lookup reads: enough to
// answer valid or invalid and to build a non-identifying summary.
type VerificationRecord struct {
	CredentialID id.CredentialID
	CourseName   string
	IssuedAt     time.Time
	Revoked      bool
}
