package models

import (
	"time"

	id "academy/pkg/domain"
	dErrors "academy/pkg/domain-errors"
)

type State string

const (
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

func (s State) IsValid() bool {
	switch s {
	case StateActive, StateCompleted, StateCancelled:
		return true
	}
	return false
}

// ParseState validates a wire value.
func ParseState(raw string) (State, error) {
	s := State(raw)
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "state must be one of [active completed cancelled]")
	}
	return s, nil
}

// Enrollment is a person's registration in one course offering.
type Enrollment struct {
	ID                 id.EnrollmentID
	PersonID           id.PersonID
	OfferingID         id.OfferingID
	State              State
	FinalScore         *float64
	CredentialIssued   bool
	CredentialIssuedAt *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsFrozen reports whether grading may no longer change the enrollment.
func (e *Enrollment) IsFrozen() bool {
	return e.State == StateCancelled || e.CredentialIssued
}

// MarkCredentialIssued records issuance. The caller has already evaluated eligibility.
func (e *Enrollment) MarkCredentialIssued(now time.Time) error {
	if e.CredentialIssued {
		return dErrors.New(dErrors.CodeInvariantViolation, "credential already issued for enrollment")
	}
	if e.State != StateCompleted || e.FinalScore == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "credential can only be issued for a graded, completed enrollment")
	}
	e.CredentialIssued = true
	e.CredentialIssuedAt = &now
	e.UpdatedAt = now
	return nil
}

// Update is the allow-list of fields the grading workflow may change.
// A nil pointer leaves the field untouched.
type Update struct {
	State      *State
	FinalScore *float64
}

func (u Update) IsEmpty() bool {
	return u.State == nil && u.FinalScore == nil
}

// ApplyUpdate applies a grading update, enforcing the enrollment invariants:
// a score exists only on completed enrollments, and frozen enrollments never change.
// Score range is checked by the caller against the configured scale.
func (e *Enrollment) ApplyUpdate(u Update, now time.Time) error {
	if u.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "no updatable fields provided")
	}
	if e.IsFrozen() {
		return dErrors.New(dErrors.CodeInvariantViolation, "enrollment is cancelled or already credentialed")
	}

	state := e.State
	if u.State != nil {
		if !u.State.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "invalid enrollment state")
		}
		state = *u.State
	}

	score := e.FinalScore
	if u.FinalScore != nil {
		v := *u.FinalScore
		score = &v
	}

	if score != nil && state != StateCompleted {
		return dErrors.New(dErrors.CodeInvariantViolation, "final score can only be set on a completed enrollment")
	}

	e.State = state
	e.FinalScore = score
	e.UpdatedAt = now
	return nil
}

// Detail is the enrollment joined with the display data the renderer and listings need.
type Detail struct {
	Enrollment
	PersonName    string
	CourseName    string
	OfferingLabel string
}
