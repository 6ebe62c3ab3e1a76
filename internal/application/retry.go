package application

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 10 * time.Second
)

// RetryPolicy is a bounded exponential-backoff loop. Only errors accepted by
// Retryable are retried; anything else ends the loop on the first attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the backoff randomization factor in [0, 1).
	Jitter float64
	// Retryable defaults to model.IsRetryable.
	Retryable func(error) bool

	sleep func(context.Context, time.Duration) error
}

// DefaultRetryPolicy retries throttling three times in total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Jitter:      0.5,
	}
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. It returns the number of attempts made and the
// last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) (int, error) {
	maxAttempts := max(p.MaxAttempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = model.IsRetryable
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	b := p.backOff()

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || !retryable(err) || attempt >= maxAttempts {
			return attempt, err
		}

		if serr := sleep(ctx, b.NextBackOff()); serr != nil {
			return attempt, err
		}
	}
}

// Delays returns the first n backoff intervals the policy would wait,
// ignoring jitter.
func (p RetryPolicy) Delays(n int) []time.Duration {
	q := p
	q.Jitter = 0
	b := q.backOff()
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = b.NextBackOff()
	}
	return out
}

// Budget is the longest Do can take when every attempt runs for perAttempt,
// with jitter at its maximum.
func (p RetryPolicy) Budget(perAttempt time.Duration) time.Duration {
	attempts := max(p.MaxAttempts, 1)
	total := time.Duration(attempts) * perAttempt
	for _, d := range p.Delays(attempts - 1) {
		total += time.Duration(float64(d) * (1 + p.Jitter))
	}
	return total
}

// MaxSyncDuration bounds one sync of every service kind: sources run in
// waves of concurrency, each wave taking at most the retry budget.
func MaxSyncDuration(p RetryPolicy, adapterTimeout time.Duration, concurrency int) time.Duration {
	if concurrency <= 0 {
		concurrency = DefaultSyncConcurrency
	}
	kinds := len(model.AllServiceKinds)
	waves := (kinds + concurrency - 1) / concurrency
	return time.Duration(waves) * p.Budget(adapterTimeout)
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	if b.InitialInterval <= 0 {
		b.InitialInterval = DefaultBaseDelay
	}
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval <= 0 {
		b.MaxInterval = DefaultMaxDelay
	}
	b.Multiplier = 2
	b.RandomizationFactor = p.Jitter
	// The attempt count bounds the loop, not elapsed time.
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
