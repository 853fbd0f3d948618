package tx

import (
	"context"
	"sync"
	"time"

	dErrors "academy/pkg/domain-errors"
)

type localKey struct{}

// Local is an in-process transaction for memory-backed stores. Stores stage
// their writes as commit hooks and release any locks they took in finish hooks,
// which run after commit or rollback in reverse registration order.
type Local struct {
	mu       sync.Mutex
	onCommit []func()
	onFinish []func()
	state    map[any]any
	done     bool
}

// LocalFrom returns the in-process transaction carried by ctx.
func LocalFrom(ctx context.Context) (*Local, bool) {
	l, ok := ctx.Value(localKey{}).(*Local)
	return l, ok
}

// RunLocal runs fn inside an in-process transaction, joining one already in ctx.
// The transaction commits when fn returns nil and rolls back otherwise.
func RunLocal(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := LocalFrom(ctx); ok {
		return fn(ctx)
	}
	l := &Local{state: make(map[any]any)}
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				l.finish(false)
				panic(r)
			}
		}()
		return fn(context.WithValue(ctx, localKey{}, l))
	}()
	l.finish(err == nil)
	return err
}

// OnCommit registers a write to apply when the transaction commits.
func (l *Local) OnCommit(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onCommit = append(l.onCommit, fn)
}

// OnFinish registers cleanup that runs after commit or rollback.
func (l *Local) OnFinish(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onFinish = append(l.onFinish, fn)
}

// Value returns transaction-scoped state stored under key.
func (l *Local) Value(key any) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.state[key]
	return v, ok
}

// SetValue stores transaction-scoped state under key.
func (l *Local) SetValue(key, value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state[key] = value
}

func (l *Local) finish(commit bool) {
	l.mu.Lock()
	if l.done {
		l.mu.Unlock()
		return
	}
	l.done = true
	commits, finishes := l.onCommit, l.onFinish
	l.mu.Unlock()

	if commit {
		for _, fn := range commits {
			fn()
		}
	}
	for i := len(finishes) - 1; i >= 0; i-- {
		finishes[i]()
	}
}

// AfterCommit runs fn when the surrounding in-process transaction commits,
// or immediately when there is none.
func AfterCommit(ctx context.Context, fn func()) {
	if l, ok := LocalFrom(ctx); ok {
		l.OnCommit(fn)
		return
	}
	fn()
}

const defaultLocalTimeout = 5 * time.Second

// LocalRunner runs in-process transactions for memory-backed stores, applying
// the same cancellation and default-deadline rules as the Postgres runner.
type LocalRunner struct {
	Timeout time.Duration
}

func (r LocalRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := r.Timeout
	if timeout == 0 {
		timeout = defaultLocalTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return RunLocal(ctx, func(txCtx context.Context) error {
		if err := fn(txCtx); err != nil {
			return err
		}
		if err := txCtx.Err(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
		}
		return nil
	})
}

// Locker is a keyed mutex such as sync.KeyedMutex.
type Locker interface {
	Lock(key string)
	Unlock(key string)
}

type heldKey struct {
	locker Locker
	key    string
}

// LockForTx takes key on locker for the rest of the in-process transaction,
// the memory equivalent of SELECT ... FOR UPDATE. Re-locking a key the
// transaction already holds is a no-op. Outside a transaction it does nothing,
// matching a row lock taken in autocommit mode.
func LockForTx(ctx context.Context, locker Locker, key string) {
	l, ok := LocalFrom(ctx)
	if !ok {
		return
	}
	hk := heldKey{locker: locker, key: key}
	if _, held := l.Value(hk); held {
		return
	}
	locker.Lock(key)
	l.SetValue(hk, struct{}{})
	l.OnFinish(func() { locker.Unlock(key) })
}
