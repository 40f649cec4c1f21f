package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// Policy configures attempts, timeouts and backoff for one class of calls.
type Policy struct {
	Attempts       int
	Timeout        time.Duration // per attempt
	BaseDelay      time.Duration
	Factor         float64
	MaxDelay       time.Duration
	Jitter         time.Duration
	RateLimitDelay time.Duration // floor for rate_limit failures
}

// MessageProfile is the policy for outbound chat messages.
func MessageProfile() Policy {
	return Policy{
		Attempts:       3,
		Timeout:        15 * time.Second,
		BaseDelay:      time.Second,
		Factor:         2,
		MaxDelay:       10 * time.Second,
		Jitter:         250 * time.Millisecond,
		RateLimitDelay: 5 * time.Second,
	}
}

// ProvisioningProfile is the policy for hosting panel calls.
func ProvisioningProfile() Policy {
	return Policy{
		Attempts:       2,
		Timeout:        45 * time.Second,
		BaseDelay:      2 * time.Second,
		Factor:         2,
		MaxDelay:       30 * time.Second,
		Jitter:         500 * time.Millisecond,
		RateLimitDelay: 10 * time.Second,
	}
}

// Delay returns the wait before the attempt following a failed attempt.
// attempt is 1-based.
func (p Policy) Delay(reason Reason, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	factor := p.Factor
	if factor < 1 {
		factor = 1
	}

	delay := time.Duration(float64(p.BaseDelay) * math.Pow(factor, float64(attempt-1)))
	if p.Jitter > 0 {
		delay += rand.N(p.Jitter)
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if reason == ReasonRateLimit && delay < p.RateLimitDelay {
		delay = p.RateLimitDelay
	}

	return delay
}

// Executor runs operations under a Policy.
type Executor struct {
	policy   Policy
	classify func(error) Reason
	logger   zerolog.Logger
}

// NewExecutor creates an executor using Classify.
func NewExecutor(policy Policy, logger zerolog.Logger) *Executor {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Executor{
		policy:   policy,
		classify: Classify,
		logger:   logger.With().Str("component", "executor").Logger(),
	}
}

// Policy returns the executor's policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Do runs fn until it succeeds, fails with a non-retryable reason or runs
// out of attempts. Each attempt gets its own timeout. Failures are returned
// as *ExternalCallError.
func (e *Executor) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var (
		attempts   int
		lastErr    error
		lastReason Reason
	)

	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		if attempts >= e.policy.Attempts {
			return 0, true
		}
		return e.policy.Delay(lastReason, attempts), false
	})

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++

		attemptCtx := ctx
		if e.policy.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, e.policy.Timeout)
			defer cancel()
		}

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}

		lastErr = err
		lastReason = e.classify(err)

		e.logger.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempts).
			Int("max_attempts", e.policy.Attempts).
			Str("reason", string(lastReason)).
			Msg("external call failed")

		if !lastReason.Retryable() {
			return err
		}
		return retry.RetryableError(err)
	})
	if err == nil {
		return nil
	}

	if lastErr == nil || ctx.Err() != nil {
		lastErr = err
		lastReason = e.classify(err)
	}

	return &ExternalCallError{
		Op:       op,
		Reason:   lastReason,
		Attempts: attempts,
		Err:      lastErr,
	}
}

// DoWithFallback behaves like Do and, when every attempt failed, runs
// fallback with the final error. The fallback's result is returned.
func (e *Executor) DoWithFallback(ctx context.Context, op string, fn func(ctx context.Context) error, fallback func(ctx context.Context, err error) error) error {
	err := e.Do(ctx, op, fn)
	if err == nil || fallback == nil {
		return err
	}

	e.logger.Info().Err(err).Str("op", op).Msg("running fallback")
	return fallback(ctx, err)
}

// Call runs fn through e and returns its value.
func Call[T any](ctx context.Context, e *Executor, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
