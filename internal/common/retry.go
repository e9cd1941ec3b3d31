// File: internal/common/retry.go
package common

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrTransientConflict marks store errors that are safe to retry: serialization
// failures, deadlocks, throughput throttling. Repositories wrap such errors so
// the retry policy does not have to pattern-match driver strings everywhere.
var ErrTransientConflict = errors.New("transient store conflict")

// transientFragments are driver-level messages that indicate a retryable
// condition when the error was not already wrapped with ErrTransientConflict.
var transientFragments = []string{
	"deadlock detected",
	"could not serialize access",
	"too many connections",
	"connection reset by peer",
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientConflict) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range transientFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

const (
	retryBaseDelay   = 100 * time.Millisecond
	retryMaxDelay    = 2 * time.Second
	retryMaxAttempts = 5
)

// RetryTransient runs op, retrying on transient store conflicts with
// exponential backoff. Non-transient errors are returned immediately; after
// the attempt budget is exhausted the last error is re-raised.
func RetryTransient(ctx context.Context, op func() error) error {
	var err error
	delay := retryBaseDelay
	for attempt := 1; attempt <= retryMaxAttempts; attempt++ {
		err = op()
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt == retryMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
	return err
}
