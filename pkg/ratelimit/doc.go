// Package ratelimit paces requests to the site and caps download bandwidth.
//
// SlidingWindow admits at most N requests in any window and backs the
// rate_limit.requests_per_minute setting. Bandwidth wraps golang.org/x/time/rate
// to throttle byte streams for rate_limit.max_bytes_per_second.
//
//	limiter := ratelimit.NewPerMinute(cfg.RateLimit.RequestsPerMinute)
//	if limiter != nil {
//	    if err := limiter.Wait(ctx); err != nil {
//	        return err
//	    }
//	}
package ratelimit
