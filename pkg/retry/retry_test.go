package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "mediamirror/pkg/errors"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.0, // No jitter for predictable testing
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{0, 0, "No attempt yet"},
		{1, 100 * time.Millisecond, "First attempt"},
		{2, 200 * time.Millisecond, "Second attempt"},
		{3, 400 * time.Millisecond, "Third attempt"},
		{4, 800 * time.Millisecond, "Fourth attempt"},
		{5, 1 * time.Second, "Fifth attempt (capped at max)"},
		{6, 1 * time.Second, "Sixth attempt (still capped)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			if delay := backoff.NextDelay(test.attempt); delay != test.expected {
				t.Errorf("Expected %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestDefaultBackoffIsPowerOfTwoCappedAtSixty(t *testing.T) {
	backoff := DefaultExponentialBackoff()

	// Attempt index i (0-based) waits min(2^i, 60) seconds.
	for i := 0; i < 12; i++ {
		want := time.Duration(1<<i) * time.Second
		if want > 60*time.Second {
			want = 60 * time.Second
		}
		if got := backoff.NextDelay(i + 1); got != want {
			t.Errorf("index %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	delays := make(map[time.Duration]bool)
	for i := 0; i < 20; i++ {
		delay := backoff.NextDelay(2)
		if delay < 140*time.Millisecond || delay > 260*time.Millisecond {
			t.Fatalf("delay %v outside jitter window", delay)
		}
		delays[delay] = true
	}

	if len(delays) < 2 {
		t.Error("Expected multiple different delays with jitter, but got consistent delays")
	}
}

func TestErrorTypeBackoff(t *testing.T) {
	etb := NewErrorTypeBackoff(60 * time.Second)

	tests := []struct {
		name     string
		err      error
		attempt  int
		expected time.Duration
	}{
		{"network first", errs.Network("u", errors.New("reset")), 1, 1 * time.Second},
		{"network fourth", errs.Network("u", errors.New("reset")), 4, 8 * time.Second},
		{"network capped", errs.Network("u", errors.New("reset")), 10, 60 * time.Second},
		{"server error", errs.ServerError("u", 503), 3, 4 * time.Second},
		{"auth lost waits nothing", errs.AuthLost("u", 403), 5, 0},
		{"untyped uses default", errors.New("plain"), 2, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := etb.DelayFor(tt.attempt, tt.err); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		Context:     context.Background(),
	}

	if err := Do(op, cfg); err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	waits := 0
	last := errs.Network("https://example.com/x", errors.New("timeout"))

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		OnRetry:     func(int, error, time.Duration) { waits++ },
		Context:     context.Background(),
		Target:      "https://example.com/x",
	}

	err := Do(func() error {
		attempts++
		return last
	}, cfg)

	if !errs.IsType(err, errs.ErrorTypeRetriesExhausted) {
		t.Fatalf("Expected retries_exhausted, got %v", err)
	}
	if !errors.Is(err, last) {
		t.Error("Expected exhausted error to wrap the last failure")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if waits != 2 {
		t.Errorf("Expected no wait after the final attempt (2 waits), got %d", waits)
	}
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	authError := errs.AuthFailed("https://example.com/login", 401)

	err := Do(func() error {
		attempts++
		return authError
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
	})

	if err != authError {
		t.Errorf("Expected auth error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt (no retry for auth failure), got %d", attempts)
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	err := Do(func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 100 * time.Millisecond},
		Context:     ctx,
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context cancellation, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts before cancellation, got %d", attempts)
	}
}

func TestOnRetrySeesZeroDelayForAuthLoss(t *testing.T) {
	var delays []time.Duration
	attempts := 0

	err := Do(func() error {
		attempts++
		if attempts == 1 {
			return errs.AuthLost("u", 403)
		}
		if attempts == 2 {
			return errs.Network("u", errors.New("reset"))
		}
		return nil
	}, &Config{
		MaxAttempts: 5,
		Backoff: &ErrorTypeBackoff{
			ByType:         map[errs.ErrorType]BackoffStrategy{errs.ErrorTypeAuthLost: &ConstantBackoff{}},
			DefaultBackoff: &ConstantBackoff{Delay: time.Millisecond},
		},
		OnRetry: func(_ int, _ error, d time.Duration) { delays = append(delays, d) },
		Context: context.Background(),
	})

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if len(delays) != 2 || delays[0] != 0 || delays[1] != time.Millisecond {
		t.Errorf("Unexpected delays %v", delays)
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	op := func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "success", nil
	}

	result, err := DoWithResult(op, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		Context:     context.Background(),
	})
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected 'success', got '%s'", result)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if err := Wait(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected zero wait to report cancellation, got %v", err)
	}
	if err := Wait(context.Background(), 0); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}
