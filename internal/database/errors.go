package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrTimeout means a store call ran past its deadline. Callers may retry.
var ErrTimeout = errors.New("database operation timed out")

const (
	pqUniqueViolation = "23505"
	pqQueryCanceled   = "57014"
)

// WithTimeout bounds a single store call. A non-positive d only adds cancellation.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Wrap annotates err with op. Deadline overruns are reported as ErrTimeout so
// handlers can tell them apart from other failures.
func Wrap(ctx context.Context, err error, op string) error {
	if err == nil {
		return nil
	}
	if IsTimeout(ctx, err) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsTimeout reports whether err came from the context deadline firing.
func IsTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// a cancelled statement is a timeout only when ctx's deadline is what
	// cancelled it; any other failure keeps its cause
	return isCancellation(err) && errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func isCancellation(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqQueryCanceled
}

// IsUniqueViolation reports whether err is a Postgres unique constraint error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
