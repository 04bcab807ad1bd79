package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/example/rollout/internal/errs"
)

// CallPolicy bounds every call to the store or the transaction feed.
type CallPolicy struct {
	Timeout     time.Duration // per attempt
	Backoff     time.Duration // wait before the retry
	MaxAttempts int           // 2 means one retry
}

// DefaultCallPolicy is used when a service is built with a zero policy.
var DefaultCallPolicy = CallPolicy{
	Timeout:     5 * time.Second,
	Backoff:     250 * time.Millisecond,
	MaxAttempts: 2,
}

func (p CallPolicy) withDefaults() CallPolicy {
	if p.Timeout <= 0 {
		p.Timeout = DefaultCallPolicy.Timeout
	}
	if p.Backoff <= 0 {
		p.Backoff = DefaultCallPolicy.Backoff
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultCallPolicy.MaxAttempts
	}
	if p.MaxAttempts > 2 {
		p.MaxAttempts = 2
	}
	return p
}

// call runs fn with a per-attempt deadline. Deadline misses become
// errs.ErrUpstreamTimeout and are retried with exponential backoff up to
// MaxAttempts; every other error is returned as is on the first attempt.
func call[T any](ctx context.Context, p CallPolicy, log logrus.FieldLogger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	attempt := 0

	operation := func() (T, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()

		v, err := fn(callCtx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			// Caller gave up; nothing to retry.
			return v, backoff.Permanent(err)
		}
		if timedOut(callCtx, err) {
			log.WithFields(logrus.Fields{
				"op":      op,
				"attempt": attempt,
				"timeout": p.Timeout.String(),
			}).Warn("upstream call timed out")
			if errs.Retryable(err) {
				return v, err
			}
			return v, fmt.Errorf("%s: %w", op, errs.ErrUpstreamTimeout)
		}
		return v, backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Backoff
	b.RandomizationFactor = 0

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
	)
}

// exec is call for operations without a result.
func exec(ctx context.Context, p CallPolicy, log logrus.FieldLogger, op string, fn func(ctx context.Context) error) error {
	_, err := call(ctx, p, log, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func timedOut(callCtx context.Context, err error) bool {
	if errs.Retryable(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return errors.Is(callCtx.Err(), context.DeadlineExceeded)
}
