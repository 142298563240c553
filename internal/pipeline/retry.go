package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"rommedia/internal/ratelimit"
	"rommedia/internal/services"
)

// AttemptResult classifies the outcome of one attempt.
type AttemptResult int

const (
	// Success ends the retry loop.
	Success AttemptResult = iota
	// Retryable failures are tried again after a backoff while attempts remain.
	Retryable
	// Fatal failures end the loop immediately.
	Fatal
)

func (r AttemptResult) String() string {
	switch r {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("attempt_result(%d)", int(r))
	}
}

// Classify maps an error onto an attempt result.
func Classify(err error) AttemptResult {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Fatal
	case services.Retryable(err):
		return Retryable
	default:
		return Fatal
	}
}

const (
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 30 * time.Second
)

// RetryPolicy runs an operation until it succeeds, fails fatally, or runs out
// of attempts. Delays grow exponentially and are fully jittered.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter returns a value in [0,1). Defaults to math/rand/v2.
	Jitter func() float64
	// Sleep defaults to ratelimit.SleepWithContext.
	Sleep func(context.Context, time.Duration) error
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Attempt is one try. It returns the result classification with the error.
type Attempt func(ctx context.Context, attempt int) (AttemptResult, error)

// Do runs op and returns the number of attempts made with the final error.
func (p RetryPolicy) Do(ctx context.Context, op Attempt) (int, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = ratelimit.SleepWithContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		result, err := op(ctx, attempt)
		switch result {
		case Success:
			return attempt, nil
		case Fatal:
			return attempt, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return attempt, err
		}
	}
	return attempts, lastErr
}

// Backoff returns the full-jitter delay before retrying after attempt:
// a uniform value in [0, min(MaxDelay, BaseDelay*2^(attempt-1))).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if attempt < 1 {
		attempt = 1
	}
	ceiling := base
	for i := 1; i < attempt && ceiling < maxDelay; i++ {
		ceiling *= 2
	}
	if ceiling > maxDelay {
		ceiling = maxDelay
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	return time.Duration(jitter() * float64(ceiling))
}
