// Package sequence allocates human-readable, strictly increasing numbers.
// Every allocation is one atomic increment in the backing store; numbers are
// never computed locally.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dErrors "academy/pkg/domain-errors"
	"academy/pkg/platform/sentinel"
	txcontext "academy/pkg/platform/tx"
)

// Receipts numbers receipt documents.
const Receipts = "receipts"

// Store performs the atomic increment-and-return, joining the transaction in ctx.
type Store interface {
	Increment(ctx context.Context, name string) (int64, error)
}

type Generator struct {
	store       Store
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

type Option func(*Generator)

func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(g *Generator) {
		if maxAttempts > 0 {
			g.maxAttempts = maxAttempts
		}
		g.backoff = backoff
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

func New(store Store, opts ...Option) *Generator {
	g := &Generator{store: store, maxAttempts: 3, backoff: 20 * time.Millisecond, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AllocateNext returns the next value of the named sequence. Inside a
// transaction a single attempt is made, since a failed statement aborts the
// transaction and the owner of the transaction decides whether to retry it.
func (g *Generator) AllocateNext(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, dErrors.New(dErrors.CodeBadRequest, "sequence name required")
	}

	attempts := g.maxAttempts
	if inTx(ctx) {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := g.store.Increment(ctx, name)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !errors.Is(err, sentinel.ErrUnavailable) || attempt == attempts {
			break
		}
		g.logger.WarnContext(ctx, "sequence allocation retry",
			"sequence", name,
			"attempt", attempt,
			"error", err,
		)
		if err := sleep(ctx, g.backoff*time.Duration(attempt)); err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeTimeout, "sequence allocation cancelled")
		}
	}

	if errors.Is(lastErr, sentinel.ErrUnavailable) {
		return 0, dErrors.Wrap(lastErr, dErrors.CodeUnavailable, fmt.Sprintf("allocate %s: storage unavailable", name))
	}
	return 0, dErrors.Wrap(lastErr, dErrors.CodeInternal, fmt.Sprintf("allocate %s", name))
}

func inTx(ctx context.Context) bool {
	if _, ok := txcontext.From(ctx); ok {
		return true
	}
	_, ok := txcontext.LocalFrom(ctx)
	return ok
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
