package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"time"
)

// RetryPolicy bounds how store calls are retried on transient failures.
// Application-level operations are never retried; only the store round-trip is.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the execution-strategy defaults of the store:
// three attempts with doubling, capped backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
	}
}

// Do runs fn, retrying transient errors up to MaxAttempts with exponential
// backoff. Non-transient errors return immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsTransient(err) || attempt == attempts-1 {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}

// IsTransient reports whether err is worth retrying: lost connections,
// lock contention, and driver-reported bad connections.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"database is locked",
		"database table is locked",
		"deadlock",
		"connection reset",
		"connection refused",
		"broken pipe",
		"try again",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
