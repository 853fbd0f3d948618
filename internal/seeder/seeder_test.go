package seeder

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy/internal/credential/eligibility"
	enrollmentstore "academy/internal/enrollment/store"
)

func TestSeedAllFillsEveryBucket(t *testing.T) {
	store := enrollmentstore.NewInMemory()
	s := New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, s.SeedAll(context.Background()))

	details, err := store.ListDetailsByOffering(context.Background(), DemoOfferingID)
	require.NoError(t, err)
	require.Len(t, details, 5)

	counts := map[eligibility.Bucket]int{}
	for _, d := range details {
		b, err := eligibility.DefaultPolicy.Classify(&d.Enrollment, false)
		require.NoError(t, err)
		counts[b]++
	}
	assert.Equal(t, 2, counts[eligibility.BucketPending], "92 and exactly 70 pass")
	assert.Equal(t, 3, counts[eligibility.BucketNotEligible])
}

func TestSeedAllTwiceConflicts(t *testing.T) {
	store := enrollmentstore.NewInMemory()
	s := New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, s.SeedAll(context.Background()))
	assert.Error(t, s.SeedAll(context.Background()), "enrollments are unique per person and offering")
}
