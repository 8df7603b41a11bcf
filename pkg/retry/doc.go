// Package retry provides backoff strategies and a retry loop for transient
// failures in network operations.
//
// Delays are chosen per failure. NewErrorTypeBackoff returns the policy used
// for site requests: transport and server faults wait 1s, 2s, 4s ... capped
// at the configured maximum, while an authentication loss waits nothing
// because the caller re-logs in from OnRetry.
//
//	err := retry.Do(func() error {
//		return fetch(ctx)
//	}, &retry.Config{
//		MaxAttempts: 10,
//		Backoff:     retry.NewErrorTypeBackoff(time.Minute),
//		OnRetry:     relogin,
//		Context:     ctx,
//		Logger:      log,
//	})
//
// When the attempts run out, Do returns an errors.ErrorTypeRetriesExhausted
// error wrapping the last failure.
package retry
