package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enrollment "academy/internal/enrollment/models"
	dErrors "academy/pkg/domain-errors"
)

func score(v float64) *float64 { return &v }

func TestIsEligible(t *testing.T) {
	p := DefaultPolicy

	tests := []struct {
		name     string
		e        enrollment.Enrollment
		eligible bool
		code     dErrors.Code
	}{
		{"completed above threshold", enrollment.Enrollment{State: enrollment.StateCompleted, FinalScore: score(85)}, true, ""},
		{"completed exactly at threshold", enrollment.Enrollment{State: enrollment.StateCompleted, FinalScore: score(70)}, true, ""},
		{"completed below threshold", enrollment.Enrollment{State: enrollment.StateCompleted, FinalScore: score(69.9)}, false, ""},
		{"active", enrollment.Enrollment{State: enrollment.StateActive}, false, ""},
		{"cancelled", enrollment.Enrollment{State: enrollment.StateCancelled}, false, ""},
		{"already credentialed", enrollment.Enrollment{State: enrollment.StateCompleted, FinalScore: score(99), CredentialIssued: true}, false, ""},
		{"completed without score", enrollment.Enrollment{State: enrollment.StateCompleted}, false, dErrors.CodeInvariantViolation},
		{"score above scale", enrollment.Enrollment{State: enrollment.StateCompleted, FinalScore: score(101)}, false, dErrors.CodeInvariantViolation},
		{"negative score", enrollment.Enrollment{State: enrollment.StateCompleted, FinalScore: score(-1)}, false, dErrors.CodeInvariantViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := p.IsEligible(&tt.e)
			if tt.code != "" {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, tt.code))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.eligible, ok)
		})
	}
}

func TestThresholdIsConfigurable(t *testing.T) {
	tenPoint, err := NewPolicy(7, 10)
	require.NoError(t, err)

	ok, err := tenPoint.IsEligible(&enrollment.Enrollment{State: enrollment.StateCompleted, FinalScore: score(7)})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = tenPoint.IsEligible(&enrollment.Enrollment{State: enrollment.StateCompleted, FinalScore: score(85)})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation), "85 is off a 10-point scale")
}

func TestNewPolicyRejectsBadScale(t *testing.T) {
	_, err := NewPolicy(70, 0)
	assert.Error(t, err)
	_, err = NewPolicy(120, 100)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	p := DefaultPolicy
	completed := enrollment.Enrollment{State: enrollment.StateCompleted, FinalScore: score(80)}
	failed := enrollment.Enrollment{State: enrollment.StateCompleted, FinalScore: score(40)}

	b, err := p.Classify(&completed, false)
	require.NoError(t, err)
	assert.Equal(t, BucketPending, b)

	b, err = p.Classify(&completed, true)
	require.NoError(t, err)
	assert.Equal(t, BucketIssued, b)

	b, err = p.Classify(&failed, false)
	require.NoError(t, err)
	assert.Equal(t, BucketNotEligible, b)

	b, err = p.Classify(&enrollment.Enrollment{State: enrollment.StateCompleted}, false)
	assert.Error(t, err)
	assert.Equal(t, BucketNotEligible, b)
}

func TestValidateScore(t *testing.T) {
	assert.NoError(t, DefaultPolicy.ValidateScore(0))
	assert.NoError(t, DefaultPolicy.ValidateScore(100))
	assert.True(t, dErrors.HasCode(DefaultPolicy.ValidateScore(100.5), dErrors.CodeValidation))
}

func TestParseBucket(t *testing.T) {
	b, err := ParseBucket("pending")
	require.NoError(t, err)
	assert.Equal(t, BucketPending, b)
	_, err = ParseBucket("archived")
	assert.Error(t, err)
}
