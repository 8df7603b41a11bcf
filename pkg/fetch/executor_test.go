package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "mediamirror/pkg/errors"
	"mediamirror/pkg/logger"
	"mediamirror/pkg/retry"
	"mediamirror/pkg/session"
)

// scriptedSession replays one outcome per request: an int is a status code,
// an error is returned as is.
type scriptedSession struct {
	mu        sync.Mutex
	script    []interface{}
	calls     int
	methods   []string
	logins    int
	loginErr  error
	expired   int
	rangeDels int
}

func (s *scriptedSession) RawRequest(ctx context.Context, method, url string, header http.Header) (*session.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.methods = append(s.methods, method)
	step := s.script[len(s.script)-1]
	if s.calls < len(s.script) {
		step = s.script[s.calls]
	}
	s.calls++

	switch v := step.(type) {
	case error:
		return nil, v
	case int:
		return &session.Response{StatusCode: v, Body: []byte("body"), FinalURL: url}, nil
	}
	panic("bad script step")
}

func (s *scriptedSession) Login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins++
	return s.loginErr
}

func (s *scriptedSession) MarkExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired++
}

func (s *scriptedSession) DelHeader(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "Range" {
		s.rangeDels++
	}
}

// recordingBackoff computes the real policy's delays but never sleeps.
type recordingBackoff struct {
	inner  *retry.ErrorTypeBackoff
	delays []time.Duration
}

func (r *recordingBackoff) NextDelay(attempt int) time.Duration { return 0 }

func (r *recordingBackoff) DelayFor(attempt int, err error) time.Duration {
	r.delays = append(r.delays, r.inner.DelayFor(attempt, err))
	return 0
}

func newTestExecutor(sess Session, attempts int, log logger.Logger) (*Executor, *recordingBackoff) {
	rec := &recordingBackoff{inner: retry.NewErrorTypeBackoff(60 * time.Second)}
	return New(sess, Options{Attempts: attempts}, log).WithBackoff(rec), rec
}

var errReset = errs.Network("https://example.com/x", errors.New("connection reset"))

func TestGetSucceedsFirstTime(t *testing.T) {
	sess := &scriptedSession{script: []interface{}{200}}
	exec, rec := newTestExecutor(sess, 10, nil)

	resp, err := exec.Get(context.Background(), "https://example.com/x")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, sess.calls)
	assert.Equal(t, 1, sess.rangeDels)
	assert.Empty(t, rec.delays)
}

func TestTransportFaultsBackOffExponentially(t *testing.T) {
	sess := &scriptedSession{script: []interface{}{errReset, errReset, errReset, 200}}
	exec, rec := newTestExecutor(sess, 10, nil)

	resp, err := exec.Get(context.Background(), "https://example.com/x")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 4, sess.calls)
	assert.Equal(t, 4, sess.rangeDels, "range cleared before every attempt")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.delays)
	assert.Equal(t, 0, sess.logins)
}

func TestAuthLossReloginsWithoutWaiting(t *testing.T) {
	sess := &scriptedSession{script: []interface{}{403, errReset, 200}}
	exec, rec := newTestExecutor(sess, 10, nil)

	resp, err := exec.Get(context.Background(), "https://example.com/x")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, sess.logins)
	assert.Equal(t, 1, sess.expired)
	// The re-login consumes no wait; the transport fault on attempt 2 waits 2s.
	assert.Equal(t, []time.Duration{0, 2 * time.Second}, rec.delays)
}

func TestFailedReloginIsLoggedAndLoopContinues(t *testing.T) {
	sess := &scriptedSession{
		script:   []interface{}{401, 401, 200},
		loginErr: errs.AuthFailed("https://example.com/login", 401),
	}
	log := logger.NewTestLogger()
	exec, _ := newTestExecutor(sess, 10, log)

	resp, err := exec.Get(context.Background(), "https://example.com/x")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 2, sess.logins, "one login per authentication loss")
	assert.True(t, log.HasMessage("Re-login failed"))
}

func TestPassThroughStatuses(t *testing.T) {
	for _, code := range []int{404, 416, 500, 503, 206, 302} {
		sess := &scriptedSession{script: []interface{}{code}}
		exec, _ := newTestExecutor(sess, 10, nil)

		resp, err := exec.Get(context.Background(), "https://example.com/x")
		require.NoError(t, err, "status %d", code)
		assert.Equal(t, code, resp.StatusCode)
		assert.Equal(t, 1, sess.calls, "status %d is not retried", code)
		assert.Equal(t, 0, sess.logins)
	}
}

func TestRetriesExhausted(t *testing.T) {
	sess := &scriptedSession{script: []interface{}{errReset}}
	exec, rec := newTestExecutor(sess, 5, nil)

	_, err := exec.Head(context.Background(), "https://example.com/x")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeRetriesExhausted))
	assert.ErrorIs(t, err, errReset)
	assert.Equal(t, 5, sess.calls)
	assert.Len(t, rec.delays, 4, "no wait after the final attempt")
	for _, m := range sess.methods {
		assert.Equal(t, http.MethodHead, m)
	}
}

func TestAuthLossOnEveryAttemptExhausts(t *testing.T) {
	sess := &scriptedSession{script: []interface{}{403}}
	exec, _ := newTestExecutor(sess, 3, nil)

	_, err := exec.Get(context.Background(), "https://example.com/x")
	assert.True(t, errs.IsType(err, errs.ErrorTypeRetriesExhausted))
	assert.True(t, errs.IsType(err, errs.ErrorTypeAuthLost))
	assert.Equal(t, 3, sess.calls)
	assert.Equal(t, 2, sess.logins)
}

func TestNonRetryableErrorStopsImmediately(t *testing.T) {
	boom := errs.New(errs.ErrorTypeParsing, "bad page")
	exec, _ := newTestExecutor(&scriptedSession{script: []interface{}{200}}, 10, nil)

	calls := 0
	err := exec.Run(context.Background(), "x", 10, func(ctx context.Context) error {
		calls++
		return boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := New(&scriptedSession{script: []interface{}{200}}, Options{Attempts: 10}, nil)

	calls := 0
	err := exec.Run(ctx, "x", 10, func(ctx context.Context) error {
		calls++
		cancel()
		return errReset
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		code     int
		authLost bool
	}{
		{200, false}, {206, false}, {301, false}, {400, true}, {401, true},
		{403, true}, {404, false}, {410, true}, {416, false}, {429, true}, {500, false},
	}
	for _, tt := range tests {
		err := CheckStatus("u", tt.code)
		assert.Equal(t, tt.authLost, errs.IsType(err, errs.ErrorTypeAuthLost), "status %d", tt.code)
	}
}

func TestDefaultAttempts(t *testing.T) {
	sess := &scriptedSession{script: []interface{}{errReset}}
	exec, _ := newTestExecutor(sess, 0, nil)

	_, err := exec.Get(context.Background(), "https://example.com/x")
	require.Error(t, err)
	assert.Equal(t, DefaultAttempts, sess.calls)
}
