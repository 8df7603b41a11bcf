package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "mediamirror/pkg/errors"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay to wait after the given 1-based attempt failed
	NextDelay(attempt int) time.Duration
}

// ErrorAwareBackoff picks a delay from the failure as well as the attempt.
type ErrorAwareBackoff interface {
	BackoffStrategy
	DelayFor(attempt int, err error) time.Duration
}

// ExponentialBackoff implements exponential backoff with optional jitter
type ExponentialBackoff struct {
	// BaseDelay is the delay after the first failed attempt
	BaseDelay time.Duration
	// MaxDelay caps every delay
	MaxDelay time.Duration
	// Multiplier is the factor by which delay increases
	Multiplier float64
	// JitterFactor adds randomness to avoid thundering herd (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff returns 1s, 2s, 4s ... capped at 60s with no jitter.
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  1 * time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2.0,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))

	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorTypeBackoff provides different backoff strategies based on error types
type ErrorTypeBackoff struct {
	// ByType maps an error type to its strategy
	ByType map[errs.ErrorType]BackoffStrategy
	// DefaultBackoff for errors without a specific strategy
	DefaultBackoff BackoffStrategy
}

// NewErrorTypeBackoff returns the transfer policy: exponential backoff capped
// at maxDelay for transport and server faults, and no wait after an
// authentication loss since a re-login happens in between.
func NewErrorTypeBackoff(maxDelay time.Duration) *ErrorTypeBackoff {
	if maxDelay <= 0 {
		maxDelay = 60 * time.Second
	}
	exp := &ExponentialBackoff{
		BaseDelay:  1 * time.Second,
		MaxDelay:   maxDelay,
		Multiplier: 2.0,
	}
	return &ErrorTypeBackoff{
		ByType: map[errs.ErrorType]BackoffStrategy{
			errs.ErrorTypeNetwork:     exp,
			errs.ErrorTypeServerError: exp,
			errs.ErrorTypeAuthLost:    &ConstantBackoff{Delay: 0},
		},
		DefaultBackoff: exp,
	}
}

// GetBackoffForError returns the appropriate backoff strategy for the error type
func (etb *ErrorTypeBackoff) GetBackoffForError(errorType errs.ErrorType) BackoffStrategy {
	if b, ok := etb.ByType[errorType]; ok {
		return b
	}
	return etb.DefaultBackoff
}

// NextDelay uses the default strategy.
func (etb *ErrorTypeBackoff) NextDelay(attempt int) time.Duration {
	return etb.DefaultBackoff.NextDelay(attempt)
}

// DelayFor picks the strategy matching err's type.
func (etb *ErrorTypeBackoff) DelayFor(attempt int, err error) time.Duration {
	return etb.GetBackoffForError(errs.TypeOf(err)).NextDelay(attempt)
}

func delayFor(b BackoffStrategy, attempt int, err error) time.Duration {
	if b == nil {
		return 0
	}
	if ea, ok := b.(ErrorAwareBackoff); ok {
		return ea.DelayFor(attempt, err)
	}
	return b.NextDelay(attempt)
}
