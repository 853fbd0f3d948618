package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"academy/internal/credential/eligibility"
	"academy/internal/credential/models"
	enrollment "academy/internal/enrollment/models"
	dErrors "academy/pkg/domain-errors"
	strutil "academy/pkg/string"
	"academy/pkg/validation"
)

type IssueRequest struct {
	EnrollmentID string `json:"enrollment_id" validate:"required,uuid"`
}

func (r *IssueRequest) Normalize() {
	strutil.TrimStrings(&r.EnrollmentID)
}

func (r *IssueRequest) Validate() error {
	return validation.Validate(r)
}

type RevokeRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (r *RevokeRequest) Normalize() {
	strutil.TrimStrings(&r.Reason)
}

func (r *RevokeRequest) Validate() error {
	return validation.Validate(r)
}

// parseOfferingFilter reads the listing query. bucket and state accept
// repeated or comma-separated values; dates are RFC 3339.
func parseOfferingFilter(q url.Values) (models.OfferingFilter, error) {
	var f models.OfferingFilter
	for _, raw := range splitList(q["bucket"]) {
		b, err := eligibility.ParseBucket(raw)
		if err != nil {
			return f, err
		}
		f.Buckets = append(f.Buckets, b)
	}
	for _, raw := range splitList(q["state"]) {
		s, err := enrollment.ParseState(raw)
		if err != nil {
			return f, err
		}
		f.States = append(f.States, s)
	}

	var err error
	if f.IssuedFrom, err = parseTime(q.Get("issued_from"), "issued_from"); err != nil {
		return f, err
	}
	if f.IssuedTo, err = parseTime(q.Get("issued_to"), "issued_to"); err != nil {
		return f, err
	}
	if f.Limit, err = parseInt(q.Get("limit"), "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = parseInt(q.Get("offset"), "offset"); err != nil {
		return f, err
	}
	return f, f.Validate()
}

func splitList(values []string) []string {
	return strutil.SplitList(strings.ToLower(strings.Join(values, ",")))
}

func parseTime(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, field+" must be an RFC 3339 timestamp")
	}
	t = t.UTC()
	return &t, nil
}

func parseInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeValidation, field+" must be a non-negative integer")
	}
	return n, nil
}
