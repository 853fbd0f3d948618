package service

import (
	"context"
	"errors"
	"time"

	dErrors "academy/pkg/domain-errors"
	"academy/pkg/platform/sentinel"
)

// errTokenCollision marks an insert that lost on the token constraint. The
// transaction is aborted and retried with a fresh token.
var errTokenCollision = errors.New("verification token collision")

// wrapStoreErr translates a store error into a domain error. Domain errors
// pass through unchanged so translation happens once.
func wrapStoreErr(err error, notFound, action string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFound)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request timed out")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "credential store unavailable")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "stored constraint violated")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}

// wrapTxErr translates failures raised by the transaction runner itself, such
// as a begin or commit that could not reach the database.
func wrapTxErr(err error) error {
	if err == nil || errors.Is(err, errTokenCollision) {
		return err
	}
	return wrapStoreErr(err, "credential not found", "credential transaction failed")
}

// retryable reports whether the whole transaction may be attempted again.
func retryable(err error) bool {
	return errors.Is(err, errTokenCollision) || dErrors.HasCode(err, dErrors.CodeUnavailable)
}

// finalize converts errors that only make sense inside the retry loop.
func finalize(err error) error {
	if errors.Is(err, errTokenCollision) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not allocate a unique verification token")
	}
	return err
}

// withRetry runs op until it succeeds, fails permanently, or exhausts the
// attempt budget. Backoff grows linearly and respects cancellation.
func (s *Service) withRetry(ctx context.Context, opName string, op func(attempt int) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = op(attempt)
		if err == nil || !retryable(err) || attempt >= s.maxAttempts {
			return finalize(err)
		}
		s.metrics.IncIssueRetry()
		s.logger.WarnContext(ctx, "retrying credential transaction",
			"op", opName,
			"attempt", attempt,
			"error", err,
		)
		if s.backoff > 0 {
			t := time.NewTimer(s.backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "request timed out")
			case <-t.C:
			}
		}
	}
}
