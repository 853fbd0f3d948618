package sequence

import (
	"context"
	"sync"

	psync "academy/pkg/platform/sync"
	txcontext "academy/pkg/platform/tx"
)

// InMemory keeps counters in process. Inside an in-process transaction the
// counter stays locked until the transaction finishes and the new value is
// only published on commit, so a rolled-back allocation leaves no gap.
type InMemory struct {
	mu     sync.Mutex
	values map[string]int64
	names  *psync.KeyedMutex
}

type stagedKey struct {
	store *InMemory
	name  string
}

func NewInMemory() *InMemory {
	return &InMemory{values: map[string]int64{Receipts: 0}, names: psync.NewKeyedMutex()}
}

func (s *InMemory) Increment(ctx context.Context, name string) (int64, error) {
	l, ok := txcontext.LocalFrom(ctx)
	if !ok {
		s.names.Lock(name)
		defer s.names.Unlock(name)
		return s.bump(name, 1), nil
	}

	txcontext.LockForTx(ctx, s.names, name)
	key := stagedKey{store: s, name: name}
	staged, had := l.Value(key)
	var base int64
	if had {
		base = staged.(int64)
	} else {
		base = s.Current(name)
	}
	next := base + 1
	l.SetValue(key, next)
	if !had {
		l.OnCommit(func() {
			v, _ := l.Value(key)
			s.mu.Lock()
			s.values[name] = v.(int64)
			s.mu.Unlock()
		})
	}
	return next, nil
}

// Current returns the last committed value.
func (s *InMemory) Current(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[name]
}

func (s *InMemory) bump(name string, by int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] += by
	return s.values[name]
}
