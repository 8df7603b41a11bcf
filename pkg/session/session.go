package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	errs "mediamirror/pkg/errors"
	"mediamirror/pkg/logger"
	"mediamirror/pkg/ratelimit"
)

// State is the logical authentication state of a Session.
type State int

const (
	StateUninitialized State = iota
	StateRestoring
	StateAuthenticated
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRestoring:
		return "restoring"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options configures a Session.
type Options struct {
	// MembersURL answers 200 only to an authenticated client.
	MembersURL string
	// LoginURL receives the credentialed login request; MembersURL when empty.
	LoginURL string

	Username string
	Password string

	// Timeout bounds connecting and waiting for response headers.
	Timeout   time.Duration
	UserAgent string

	// Store persists the session between runs. Nil disables persistence.
	Store SnapshotStore
	// Limiter paces outgoing requests. Nil disables pacing.
	Limiter ratelimit.Limiter
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	FinalURL   string
	Header     http.Header
}

// Session is an HTTP client that keeps itself logged in to the site.
// It is owned by a single control goroutine; the mutexes only protect
// against the login path racing a concurrent status query.
type Session struct {
	opts   Options
	logger logger.Logger

	loginMu sync.Mutex

	transport http.RoundTripper

	mu      sync.Mutex
	client  *http.Client
	jar     *recordingJar
	headers http.Header
	state   State
	lastURL string
}

// New creates a Session in the Uninitialized state.
func New(opts Options, log logger.Logger) *Session {
	if opts.LoginURL == "" {
		opts.LoginURL = opts.MembersURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	s := &Session{
		opts:    opts,
		logger:  logger.OrNop(log),
		headers: make(http.Header),
	}
	if opts.UserAgent != "" {
		s.headers.Set("User-Agent", opts.UserAgent)
	}
	s.transport = opts.Transport
	if s.transport == nil {
		s.transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   s.opts.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   s.opts.Timeout,
			ResponseHeaderTimeout: s.opts.Timeout,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          10,
			// Byte offsets must refer to the stored representation.
			DisableCompression: true,
		}
	}
	s.reset()
	return s
}

// reset replaces the client and cookie jar with fresh ones. The transport is
// kept; its idle connections belong to the old login and are closed.
func (s *Session) reset() {
	jar := newRecordingJar()

	s.mu.Lock()
	old := s.client
	s.jar = jar
	s.client = &http.Client{Transport: s.transport, Jar: jar}
	s.mu.Unlock()

	if old != nil {
		old.CloseIdleConnections()
	}
}

// State returns the current authentication state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()

	if prev != st {
		s.logger.DebugWithFields("Session state changed", map[string]interface{}{
			"from": prev.String(),
			"to":   st.String(),
		})
	}
}

// MarkExpired records that the site stopped accepting the session.
func (s *Session) MarkExpired() {
	s.setState(StateExpired)
}

// LastURL returns the final URL, after redirects, of the latest request.
func (s *Session) LastURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastURL
}

// SetHeader sets a header sent on every following request.
func (s *Session) SetHeader(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers.Set(key, value)
}

// DelHeader removes a header set with SetHeader.
func (s *Session) DelHeader(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers.Del(key)
}

// Header returns the value of a sticky header.
func (s *Session) Header(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers.Get(key)
}

// Do sends a request and returns the response with its body unread.
// The caller must close the body.
func (s *Session) Do(ctx context.Context, method, url string, header http.Header) (*http.Response, error) {
	if s.opts.Limiter != nil {
		if err := s.opts.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
	}

	s.mu.Lock()
	for key, values := range s.headers {
		req.Header[key] = append([]string(nil), values...)
	}
	client := s.client
	s.mu.Unlock()

	for key, values := range header {
		req.Header[key] = values
	}
	if s.opts.Username != "" {
		req.SetBasicAuth(s.opts.Username, s.opts.Password)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":   method,
			"url":      url,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, errs.Network(url, err)
	}

	s.mu.Lock()
	s.lastURL = resp.Request.URL.String()
	s.mu.Unlock()

	logger.LogRequest(s.logger, method, url, resp.StatusCode, time.Since(start))

	return resp, nil
}

// RawRequest sends a request and reads the whole body.
func (s *Session) RawRequest(ctx context.Context, method, url string, header http.Header) (*Response, error) {
	resp, err := s.Do(ctx, method, url, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Network(url, fmt.Errorf("failed to read body: %w", err))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		FinalURL:   resp.Request.URL.String(),
		Header:     resp.Header,
	}, nil
}

// Login discards any cookies and authenticates from scratch. A non-200
// answer from the login URL is an auth_failed error.
func (s *Session) Login(ctx context.Context) error {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	s.reset()
	s.DelHeader("Range")

	s.logger.InfoWithFields("Logging in", map[string]interface{}{
		"url":      s.opts.LoginURL,
		"username": s.opts.Username,
	})

	resp, err := s.RawRequest(ctx, http.MethodGet, s.opts.LoginURL, nil)
	if err != nil {
		s.setState(StateExpired)
		return err
	}
	if resp.StatusCode != http.StatusOK {
		s.setState(StateExpired)
		return errs.AuthFailed(s.opts.LoginURL, resp.StatusCode)
	}

	s.setState(StateAuthenticated)
	s.persist()
	s.logger.Info("Logged in")
	return nil
}

// RestoreOrLogin reuses the stored session when the site still accepts it
// and logs in otherwise.
func (s *Session) RestoreOrLogin(ctx context.Context) error {
	s.setState(StateRestoring)

	if s.restore(ctx) {
		s.setState(StateAuthenticated)
		s.logger.Info("Restored stored session")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.setState(StateExpired)
	return s.Login(ctx)
}

// restore loads the snapshot and verifies it with one request to the
// members URL.
func (s *Session) restore(ctx context.Context) bool {
	if s.opts.Store == nil {
		return false
	}

	snap, err := s.opts.Store.Load()
	if err != nil {
		s.logger.WithError(err).Warn("Ignoring unreadable session state")
		return false
	}
	if snap == nil {
		s.logger.Debug("No stored session")
		return false
	}
	if s.opts.Username != "" && snap.Username != "" && snap.Username != s.opts.Username {
		s.logger.InfoWithFields("Stored session belongs to another account", map[string]interface{}{
			"stored": snap.Username,
		})
		return false
	}

	s.mu.Lock()
	jar := s.jar
	s.mu.Unlock()
	if skipped := jar.restore(snap.Cookies); skipped > 0 {
		s.logger.WarnWithFields("Skipped malformed stored cookies", map[string]interface{}{
			"skipped": skipped,
		})
	}

	resp, err := s.RawRequest(ctx, http.MethodGet, s.opts.MembersURL, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Could not verify stored session")
		return false
	}
	if resp.StatusCode != http.StatusOK {
		s.logger.InfoWithFields("Stored session no longer accepted", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return false
	}
	return true
}

// persist writes the current cookies. Failures are logged; the session
// stays usable for this run.
func (s *Session) persist() {
	if s.opts.Store == nil {
		return
	}

	s.mu.Lock()
	jar := s.jar
	s.mu.Unlock()

	snap := &Snapshot{
		Version:  SnapshotVersion,
		SavedAt:  time.Now().UTC(),
		Username: s.opts.Username,
		Cookies:  jar.export(),
	}
	if err := s.opts.Store.Save(snap); err != nil {
		s.logger.WithError(err).Warn("Failed to persist session")
	}
}

// Forget deletes the persisted snapshot and expires the session.
func (s *Session) Forget() error {
	s.setState(StateExpired)
	if s.opts.Store == nil {
		return nil
	}
	return s.opts.Store.Delete()
}
