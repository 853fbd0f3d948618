package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "academy/pkg/domain-errors"
)

type gradeRequest struct {
	EnrollmentID string `json:"enrollment_id" validate:"required,uuid"`
	Score        int    `json:"score" validate:"gte=0,lte=100"`
	State        string `json:"state" validate:"omitempty,oneof=active completed withdrawn"`
	Reason       string `json:"reason" validate:"omitempty,notblank"`
}

func TestValidate(t *testing.T) {
	valid := gradeRequest{EnrollmentID: "550e8400-e29b-41d4-a716-446655440001", Score: 80, State: "completed"}

	cases := []struct {
		name    string
		mutate  func(r *gradeRequest)
		message string
	}{
		{"missing id", func(r *gradeRequest) { r.EnrollmentID = "" }, "enrollment_id is required"},
		{"bad uuid", func(r *gradeRequest) { r.EnrollmentID = "nope" }, "enrollment_id must be a valid uuid"},
		{"score too high", func(r *gradeRequest) { r.Score = 101 }, "score must be at most 100"},
		{"negative score", func(r *gradeRequest) { r.Score = -1 }, "score must be at least 0"},
		{"unknown state", func(r *gradeRequest) { r.State = "paused" }, "state must be one of [active completed withdrawn]"},
		{"blank reason", func(r *gradeRequest) { r.Reason = "   " }, "reason must not be blank"},
	}

	require.NoError(t, Validate(valid))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			err := Validate(req)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tc.message, err.Error())
		})
	}
}
