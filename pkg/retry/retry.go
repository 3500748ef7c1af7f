// Package retry wraps cenkalti/backoff with a small policy type used for
// startup connections (the document store). Pipeline data paths do not
// retry; see the egress batcher's failure contract.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// PermanentError marks an error that must not be retried.
type PermanentError interface {
	error
	IsPermanent() bool
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string     { return e.err.Error() }
func (e *permanentError) IsPermanent() bool { return true }
func (e *permanentError) Unwrap() error     { return e.err }

// NewPermanentError wraps an error so Retry gives up immediately.
func NewPermanentError(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Policy bounds the retry behaviour.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

// DefaultPolicy makes up to three attempts with exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

func (p Policy) backoff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.Multiplier
	exp.MaxElapsedTime = p.MaxElapsedTime

	var b backoff.BackOff = exp
	b = backoff.WithContext(b, ctx)
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	return b
}

// Retry runs fn until it succeeds, the policy is exhausted, the context is
// cancelled, or fn returns a PermanentError.
func Retry(ctx context.Context, policy Policy, fn func() error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	operation := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		var permanent PermanentError
		if errors.As(err, &permanent) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(operation, policy.backoff(ctx))
}
