// Package eligibility decides whether an enrollment qualifies for a credential.
// It performs no I/O so the same predicate gates issuance and classifies listings.
package eligibility

import (
	"fmt"
	"math"

	enrollment "academy/internal/enrollment/models"
	dErrors "academy/pkg/domain-errors"
)

// Bucket is the listing classification of an enrollment.
type Bucket string

const (
	BucketIssued      Bucket = "issued"
	BucketPending     Bucket = "pending"
	BucketNotEligible Bucket = "not_eligible"
)

func (b Bucket) IsValid() bool {
	switch b {
	case BucketIssued, BucketPending, BucketNotEligible:
		return true
	}
	return false
}

// ParseBucket validates a wire value.
func ParseBucket(raw string) (Bucket, error) {
	b := Bucket(raw)
	if !b.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "bucket must be one of [issued pending not_eligible]")
	}
	return b, nil
}

// Policy is the configured pass mark on a 0..MaxScore scale.
type Policy struct {
	PassingScore float64
	MaxScore     float64
}

// DefaultPolicy is the canonical 0-100 scale with a pass mark of 70.
var DefaultPolicy = Policy{PassingScore: 70, MaxScore: 100}

// NewPolicy validates the threshold against the scale.
func NewPolicy(passing, max float64) (Policy, error) {
	if max <= 0 || math.IsNaN(max) || math.IsInf(max, 0) {
		return Policy{}, fmt.Errorf("score scale must be positive, got %v", max)
	}
	if passing < 0 || passing > max || math.IsNaN(passing) {
		return Policy{}, fmt.Errorf("passing score %v outside [0, %v]", passing, max)
	}
	return Policy{PassingScore: passing, MaxScore: max}, nil
}

// ValidateScore checks a grading input against the scale.
func (p Policy) ValidateScore(score float64) error {
	if !p.inRange(score) {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("final_score must be between 0 and %v", p.MaxScore))
	}
	return nil
}

func (p Policy) inRange(score float64) bool {
	return !math.IsNaN(score) && score >= 0 && score <= p.MaxScore
}

// IsEligible reports whether e may receive a credential now: completed, graded at
// or above the pass mark, and not yet credentialed. A completed enrollment without
// a score, or with one outside the scale, is a data-integrity error.
func (p Policy) IsEligible(e *enrollment.Enrollment) (bool, error) {
	if e == nil {
		return false, dErrors.New(dErrors.CodeInvariantViolation, "enrollment is required")
	}
	if e.State != enrollment.StateCompleted {
		return false, nil
	}
	if e.FinalScore == nil {
		return false, dErrors.New(dErrors.CodeInvariantViolation, "completed enrollment has no final score")
	}
	if !p.inRange(*e.FinalScore) {
		return false, dErrors.New(dErrors.CodeInvariantViolation, "final score outside the configured scale")
	}
	if e.CredentialIssued {
		return false, nil
	}
	return *e.FinalScore >= p.PassingScore, nil
}

// Classify places an enrollment into a listing bucket. hasCredential reflects
// the credentials table; the enrollment flag alone also counts as issued.
func (p Policy) Classify(e *enrollment.Enrollment, hasCredential bool) (Bucket, error) {
	if hasCredential || (e != nil && e.CredentialIssued) {
		return BucketIssued, nil
	}
	ok, err := p.IsEligible(e)
	if err != nil {
		return BucketNotEligible, err
	}
	if ok {
		return BucketPending, nil
	}
	return BucketNotEligible, nil
}
