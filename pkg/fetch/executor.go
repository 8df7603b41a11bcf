package fetch

import (
	"context"
	"net/http"
	"time"

	errs "mediamirror/pkg/errors"
	"mediamirror/pkg/logger"
	"mediamirror/pkg/retry"
	"mediamirror/pkg/session"
)

// Session is the part of session.Session the executor drives.
type Session interface {
	RawRequest(ctx context.Context, method, url string, header http.Header) (*session.Response, error)
	Login(ctx context.Context) error
	MarkExpired()
	DelHeader(key string)
}

// Options configures an Executor.
type Options struct {
	// Attempts is the default attempt count for Get and Head.
	Attempts int
	// MaxBackoff caps the wait after a transport fault.
	MaxBackoff time.Duration
}

// DefaultAttempts is used when Options.Attempts is not positive.
const DefaultAttempts = 10

// Executor issues requests through a Session, retrying transport faults
// with exponential backoff and re-logging in once per authentication loss.
type Executor struct {
	sess    Session
	opts    Options
	backoff retry.BackoffStrategy
	logger  logger.Logger
}

// New creates an Executor.
func New(sess Session, opts Options, log logger.Logger) *Executor {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	return &Executor{
		sess:    sess,
		opts:    opts,
		backoff: retry.NewErrorTypeBackoff(opts.MaxBackoff),
		logger:  logger.OrNop(log),
	}
}

// WithBackoff replaces the backoff policy.
func (e *Executor) WithBackoff(b retry.BackoffStrategy) *Executor {
	clone := *e
	clone.backoff = b
	return &clone
}

// Get fetches url with the default attempt count.
func (e *Executor) Get(ctx context.Context, url string) (*session.Response, error) {
	return e.Request(ctx, http.MethodGet, url, e.opts.Attempts)
}

// Head probes url with the default attempt count.
func (e *Executor) Head(ctx context.Context, url string) (*session.Response, error) {
	return e.Request(ctx, http.MethodHead, url, e.opts.Attempts)
}

// Request sends method to url up to attempts times. 404 and 416 come back
// as responses; any other 4xx counts as authentication loss.
func (e *Executor) Request(ctx context.Context, method, url string, attempts int) (*session.Response, error) {
	return retry.DoWithResult(func() (*session.Response, error) {
		e.sess.DelHeader("Range")
		resp, err := e.sess.RawRequest(ctx, method, url, nil)
		if err != nil {
			return nil, err
		}
		if err := CheckStatus(url, resp.StatusCode); err != nil {
			return nil, err
		}
		return resp, nil
	}, e.config(ctx, url, attempts))
}

// Run applies the retry policy to op. Before every attempt the sticky Range
// header is cleared. Authentication loss triggers one login and the next
// attempt follows without a wait; a failed login is logged and the loop
// carries on. Transport and server faults wait min(2^i, MaxBackoff).
func (e *Executor) Run(ctx context.Context, target string, attempts int, op func(ctx context.Context) error) error {
	return retry.Do(func() error {
		e.sess.DelHeader("Range")
		return op(ctx)
	}, e.config(ctx, target, attempts))
}

// config builds the retry policy for one logical request. A non-positive
// attempts uses the default count.
func (e *Executor) config(ctx context.Context, target string, attempts int) *retry.Config {
	if attempts <= 0 {
		attempts = e.opts.Attempts
	}
	return &retry.Config{
		MaxAttempts: attempts,
		Backoff:     e.backoff,
		RetryIf:     errs.IsRetryableError,
		OnRetry: func(attempt int, err error, _ time.Duration) {
			if errs.IsType(err, errs.ErrorTypeAuthLost) {
				e.relogin(ctx)
			}
		},
		Context: ctx,
		Logger:  e.logger,
		Target:  target,
	}
}

func (e *Executor) relogin(ctx context.Context) {
	e.sess.MarkExpired()
	e.logger.Warn("Authentication lost, logging in again")
	if err := e.sess.Login(ctx); err != nil {
		e.logger.WithError(err).Error("Re-login failed")
	}
}

// CheckStatus maps a status code to the executor's error taxonomy.
// It returns nil for statuses handed back to the caller.
func CheckStatus(url string, code int) error {
	switch {
	case code == http.StatusNotFound, code == http.StatusRequestedRangeNotSatisfiable:
		return nil
	case code >= 400 && code < 500:
		return errs.AuthLost(url, code)
	default:
		return nil
	}
}
