package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq"
)

var (
	retryMaxElapsed      = 10 * time.Second
	retryInitialInterval = 100 * time.Millisecond
	retryMaxInterval     = 2 * time.Second
	retryMaxAttempts     = uint64(4)
)

// isRetryable reports whether a database error is transient. Connection
// failures (class 08), serialization failures and deadlocks (class 40),
// resource exhaustion (class 53) and operator intervention (class 57) are
// worth another attempt.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			return true
		}
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout")
}

// commitError is a failed COMMIT. The server may have applied the
// transaction before the connection dropped, so it is never retried.
type commitError struct {
	err error
}

func (e *commitError) Error() string { return "commit: " + e.err.Error() }
func (e *commitError) Unwrap() error { return e.err }

func commit(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return &commitError{err: err}
	}
	return nil
}

// withRetry runs op with exponential backoff while it fails with transient
// errors. Any other error, and any failed commit, is returned on the first
// attempt.
func withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(retryMaxElapsed),
		backoff.WithInitialInterval(retryInitialInterval),
		backoff.WithMaxInterval(retryMaxInterval),
	), retryMaxAttempts)

	return backoff.Retry(func() error {
		err := op(ctx)
		var ce *commitError
		if err != nil && (errors.As(err, &ce) || !isRetryable(err)) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}
