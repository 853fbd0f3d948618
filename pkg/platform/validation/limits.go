package validation

import (
	"fmt"

	dErrors "academy/pkg/domain-errors"
)

// MaxBodySize caps JSON request bodies (16 KB). Admin payloads are a handful of IDs.
const MaxBodySize = 16 * 1024

// Listing limits for offering and learner credential views.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// String limits at the trust boundary.
const (
	MaxReasonLength    = 500
	MaxActorIDLength   = 128
	MaxStateFilterSize = 4
)

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, limit int) error {
	if count > limit {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, limit))
	}
	return nil
}

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, limit int) error {
	if len(value) > limit {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, limit))
	}
	return nil
}

// ClampPage normalizes limit/offset query values.
// Zero or negative limits fall back to DefaultPageSize; offsets never go below zero.
func ClampPage(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
