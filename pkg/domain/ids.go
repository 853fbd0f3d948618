// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "academy/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing PersonID where EnrollmentID is expected.
type (
	PersonID     uuid.UUID
	EnrollmentID uuid.UUID
	OfferingID   uuid.UUID
	CourseID     uuid.UUID
	CredentialID uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParsePersonID(s string) (PersonID, error) {
	id, err := parseUUID(s, "person ID")
	return PersonID(id), err
}

func ParseEnrollmentID(s string) (EnrollmentID, error) {
	id, err := parseUUID(s, "enrollment ID")
	return EnrollmentID(id), err
}

func ParseOfferingID(s string) (OfferingID, error) {
	id, err := parseUUID(s, "offering ID")
	return OfferingID(id), err
}

func ParseCourseID(s string) (CourseID, error) {
	id, err := parseUUID(s, "course ID")
	return CourseID(id), err
}

func ParseCredentialID(s string) (CredentialID, error) {
	id, err := parseUUID(s, "credential ID")
	return CredentialID(id), err
}

// NewCredentialID generates a random credential identifier.
func NewCredentialID() CredentialID { return CredentialID(uuid.New()) }

// String methods - for logging and debugging.

func (id PersonID) String() string     { return uuid.UUID(id).String() }
func (id EnrollmentID) String() string { return uuid.UUID(id).String() }
func (id OfferingID) String() string   { return uuid.UUID(id).String() }
func (id CourseID) String() string     { return uuid.UUID(id).String() }
func (id CredentialID) String() string { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id PersonID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id EnrollmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id OfferingID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CourseID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here; services reject them with IsNil so that store
// lookups keep returning consistent "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
