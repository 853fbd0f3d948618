package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "academy/pkg/domain-errors"
)

func TestRunLocalCommitsOnSuccess(t *testing.T) {
	var order []string
	err := RunLocal(context.Background(), func(ctx context.Context) error {
		l, ok := LocalFrom(ctx)
		require.True(t, ok)
		l.OnFinish(func() { order = append(order, "release-a") })
		l.OnFinish(func() { order = append(order, "release-b") })
		AfterCommit(ctx, func() { order = append(order, "apply") })
		assert.Empty(t, order, "writes are deferred until commit")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"apply", "release-b", "release-a"}, order)
}

func TestRunLocalRollsBackOnError(t *testing.T) {
	boom := errors.New("boom")
	applied, released := false, false

	err := RunLocal(context.Background(), func(ctx context.Context) error {
		l, _ := LocalFrom(ctx)
		l.OnFinish(func() { released = true })
		AfterCommit(ctx, func() { applied = true })
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, applied)
	assert.True(t, released)
}

func TestRunLocalJoinsOuterTransaction(t *testing.T) {
	applied := false
	err := RunLocal(context.Background(), func(outer context.Context) error {
		_ = RunLocal(outer, func(inner context.Context) error {
			AfterCommit(inner, func() { applied = true })
			return nil
		})
		assert.False(t, applied, "inner call must not commit the outer transaction")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestRunLocalReleasesOnPanic(t *testing.T) {
	released := false
	assert.Panics(t, func() {
		_ = RunLocal(context.Background(), func(ctx context.Context) error {
			l, _ := LocalFrom(ctx)
			l.OnFinish(func() { released = true })
			panic("boom")
		})
	})
	assert.True(t, released)
}

func TestAfterCommitWithoutTransactionRunsImmediately(t *testing.T) {
	ran := false
	AfterCommit(context.Background(), func() { ran = true })
	assert.True(t, ran)
}

func TestLocalValue(t *testing.T) {
	_ = RunLocal(context.Background(), func(ctx context.Context) error {
		l, _ := LocalFrom(ctx)
		_, ok := l.Value("k")
		assert.False(t, ok)
		l.SetValue("k", 3)
		v, ok := l.Value("k")
		assert.True(t, ok)
		assert.Equal(t, 3, v)
		return nil
	})
}

func TestLocalRunnerRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := LocalRunner{}.RunInTx(ctx, func(context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestLocalRunnerAppliesDefaultDeadline(t *testing.T) {
	err := LocalRunner{}.RunInTx(context.Background(), func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		_, inTx := LocalFrom(ctx)
		assert.True(t, inTx)
		return nil
	})
	require.NoError(t, err)
}

type countingLocker struct {
	locks, unlocks map[string]int
}

func (c *countingLocker) Lock(key string)   { c.locks[key]++ }
func (c *countingLocker) Unlock(key string) { c.unlocks[key]++ }

func TestLockForTxHoldsUntilFinish(t *testing.T) {
	locker := &countingLocker{locks: map[string]int{}, unlocks: map[string]int{}}

	err := RunLocal(context.Background(), func(ctx context.Context) error {
		LockForTx(ctx, locker, "enrollment-1")
		LockForTx(ctx, locker, "enrollment-1")
		assert.Equal(t, 1, locker.locks["enrollment-1"], "re-locking a held key is a no-op")
		assert.Zero(t, locker.unlocks["enrollment-1"])
		return errors.New("rollback")
	})

	require.Error(t, err)
	assert.Equal(t, 1, locker.unlocks["enrollment-1"], "lock released on rollback")
}

func TestLockForTxOutsideTransactionIsNoop(t *testing.T) {
	locker := &countingLocker{locks: map[string]int{}, unlocks: map[string]int{}}
	LockForTx(context.Background(), locker, "k")
	assert.Zero(t, locker.locks["k"])
}
