package models

import (
	"time"

	"academy/internal/credential/eligibility"
	enrollment "academy/internal/enrollment/models"
	dErrors "academy/pkg/domain-errors"
	"academy/pkg/platform/validation"
)

// OfferingFilter narrows an offering listing. Zero values match everything.
// Stores compile the state and issuance window into parameterized queries;
// buckets and paging are applied by the ledger after classification.
type OfferingFilter struct {
	Buckets    []eligibility.Bucket
	States     []enrollment.State
	IssuedFrom *time.Time
	IssuedTo   *time.Time
	Limit      int
	Offset     int
}

// Normalize clamps paging to the configured bounds.
func (f *OfferingFilter) Normalize() {
	f.Limit, f.Offset = validation.ClampPage(f.Limit, f.Offset)
}

func (f *OfferingFilter) Validate() error {
	if err := validation.CheckSliceCount("bucket", len(f.Buckets), validation.MaxStateFilterSize); err != nil {
		return err
	}
	if err := validation.CheckSliceCount("state", len(f.States), validation.MaxStateFilterSize); err != nil {
		return err
	}
	for _, b := range f.Buckets {
		if !b.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "invalid bucket filter")
		}
	}
	for _, s := range f.States {
		if !s.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "invalid state filter")
		}
	}
	if f.IssuedFrom != nil && f.IssuedTo != nil && f.IssuedTo.Before(*f.IssuedFrom) {
		return dErrors.New(dErrors.CodeValidation, "issued_to must not be before issued_from")
	}
	return nil
}

// MatchesBucket reports whether b passes the bucket filter.
func (f *OfferingFilter) MatchesBucket(b eligibility.Bucket) bool {
	if len(f.Buckets) == 0 {
		return true
	}
	for _, want := range f.Buckets {
		if want == b {
			return true
		}
	}
	return false
}

// MatchesState reports whether s passes the state filter.
func (f *OfferingFilter) MatchesState(s enrollment.State) bool {
	if len(f.States) == 0 {
		return true
	}
	for _, want := range f.States {
		if want == s {
			return true
		}
	}
	return false
}

// MatchesIssued applies the issuance window. Rows without a credential only
// match when no window is set.
func (f *OfferingFilter) MatchesIssued(c *Credential) bool {
	if f.IssuedFrom == nil && f.IssuedTo == nil {
		return true
	}
	if c == nil {
		return false
	}
	if f.IssuedFrom != nil && c.IssuedAt.Before(*f.IssuedFrom) {
		return false
	}
	if f.IssuedTo != nil && c.IssuedAt.After(*f.IssuedTo) {
		return false
	}
	return true
}

// OfferingRow is one enrollment of an offering joined with its credential, if any.
// Bucket is computed on read and never stored.
type OfferingRow struct {
	Enrollment enrollment.Detail
	Credential *Credential
	Bucket     eligibility.Bucket
}

// OfferingPage is one page of a classified listing. Total counts every row
// that matched the filter.
type OfferingPage struct {
	Rows  []OfferingRow
	Total int
}
