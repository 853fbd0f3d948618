package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy/pkg/platform/audit/outbox"
	"academy/pkg/platform/tx"
)

func TestAppendIsDeferredUntilCommit(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = tx.RunLocal(ctx, func(txCtx context.Context) error {
		require.NoError(t, s.Append(txCtx, outbox.NewEntry("credential", "c1", "credential.issued", []byte(`{}`))))
		n, _ := s.CountPending(ctx)
		assert.Zero(t, n)
		return errors.New("rollback")
	})
	n, _ := s.CountPending(ctx)
	assert.Zero(t, n, "rolled back entry must not be visible")

	require.NoError(t, tx.RunLocal(ctx, func(txCtx context.Context) error {
		return s.Append(txCtx, outbox.NewEntry("credential", "c1", "credential.issued", []byte(`{}`)))
	}))
	n, _ = s.CountPending(ctx)
	assert.Equal(t, int64(1), n)
}

func TestFetchMarkDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	newer := outbox.NewEntry("credential", "c2", "credential.revoked", nil)
	newer.CreatedAt = base.Add(time.Minute)
	older := outbox.NewEntry("credential", "c1", "credential.issued", nil)
	older.CreatedAt = base
	require.NoError(t, s.Append(ctx, newer))
	require.NoError(t, s.Append(ctx, older))

	got, err := s.FetchUnprocessed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, older.ID, got[0].ID)

	require.NoError(t, s.MarkProcessed(ctx, older.ID, base.Add(time.Hour)))
	assert.Error(t, s.MarkProcessed(ctx, older.ID, base.Add(time.Hour)), "already processed")

	deleted, err := s.DeleteProcessedBefore(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	n, _ := s.CountPending(ctx)
	assert.Equal(t, int64(1), n)
}
