// Package retry runs fallible fetches under a backoff policy.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"killboard-stats/internal/fetch"
	"killboard-stats/internal/storage"
)

// Class decides how a failed attempt is retried.
type Class int

const (
	// Transient errors are retried with exponential backoff.
	Transient Class = iota
	// RateLimited errors are retried after a constant delay.
	RateLimited
	// Permanent errors are returned immediately.
	Permanent
)

// Default policy values.
const (
	DefaultMaxAttempts     = 3
	DefaultInitialInterval = 200 * time.Millisecond
	DefaultMaxInterval     = 2 * time.Second
	DefaultMultiplier      = 2.0
	DefaultRateLimitDelay  = time.Second
)

// Policy configures Do.
type Policy struct {
	MaxAttempts     int // total attempts including the first
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	RateLimitDelay  time.Duration

	// Classify maps an error to a Class. Nil uses DefaultClassify.
	Classify func(error) Class
	// OnRetry is called before each wait. Optional.
	OnRetry func(err error, wait time.Duration)
}

// DefaultPolicy returns the policy used around store fetches.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		Multiplier:      DefaultMultiplier,
		RateLimitDelay:  DefaultRateLimitDelay,
	}
}

// DefaultClassify treats invalid input, missing records, unknown groups and
// cancellation as permanent, rate limiting as RateLimited, everything else as Transient.
func DefaultClassify(err error) Class {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Permanent
	case errors.Is(err, storage.ErrInvalidInput), errors.Is(err, storage.ErrNotFound), errors.Is(err, fetch.ErrUnknownGroup):
		return Permanent
	case errors.Is(err, fetch.ErrRateLimited):
		return RateLimited
	default:
		return Transient
	}
}

// Do runs op until it succeeds, fails permanently, or runs out of attempts.
// The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, op func() error) error {
	classify := p.Classify
	if classify == nil {
		classify = DefaultClassify
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := newSwitchingBackOff(p)
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		switch classify(err) {
		case Permanent:
			return backoff.Permanent(err)
		case RateLimited:
			b.rateLimited = true
		default:
			b.rateLimited = false
		}
		return err
	}

	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = p.OnRetry
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
	return backoff.RetryNotify(wrapped, policy, notify)
}

// switchingBackOff uses a constant delay after rate limiting and exponential
// growth otherwise. The flag is set by the operation before each NextBackOff call.
type switchingBackOff struct {
	exp         *backoff.ExponentialBackOff
	constant    *backoff.ConstantBackOff
	rateLimited bool
}

func newSwitchingBackOff(p Policy) *switchingBackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		exp.Multiplier = p.Multiplier
	}
	exp.MaxElapsedTime = 0
	exp.Reset()

	delay := p.RateLimitDelay
	if delay <= 0 {
		delay = DefaultRateLimitDelay
	}

	return &switchingBackOff{
		exp:      exp,
		constant: backoff.NewConstantBackOff(delay),
	}
}

// NextBackOff implements backoff.BackOff.
func (b *switchingBackOff) NextBackOff() time.Duration {
	if b.rateLimited {
		return b.constant.NextBackOff()
	}
	return b.exp.NextBackOff()
}

// Reset implements backoff.BackOff.
func (b *switchingBackOff) Reset() {
	b.exp.Reset()
	b.rateLimited = false
}
