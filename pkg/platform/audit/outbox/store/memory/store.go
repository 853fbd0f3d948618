// Package memory is an in-process outbox used when no database is configured.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"academy/pkg/platform/audit/outbox"
	"academy/pkg/platform/tx"
)

type Store struct {
	mu      sync.Mutex
	entries []*outbox.Entry
}

func New() *Store {
	return &Store{}
}

// Append queues the entry until the surrounding in-process transaction commits.
func (s *Store) Append(ctx context.Context, entry *outbox.Entry) error {
	cp := *entry
	tx.AfterCommit(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries = append(s.entries, &cp)
	})
	return nil
}

func (s *Store) FetchUnprocessed(_ context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*outbox.Entry
	for _, e := range s.entries {
		if e.IsPending() {
			cp := *e
			out = append(out, &cp)
		}
	}
	slices.SortStableFunc(out, func(a, b *outbox.Entry) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkProcessed(_ context.Context, id uuid.UUID, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id && e.IsPending() {
			at := processedAt
			e.ProcessedAt = &at
			return nil
		}
	}
	return fmt.Errorf("outbox entry not found or already processed: %s", id)
}

func (s *Store) CountPending(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.entries {
		if e.IsPending() {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	var deleted int64
	for _, e := range s.entries {
		if e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return deleted, nil
}
