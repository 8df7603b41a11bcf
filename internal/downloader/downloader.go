package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	errs "mediamirror/pkg/errors"
	"mediamirror/pkg/fetch"
	"mediamirror/pkg/logger"
	"mediamirror/pkg/ratelimit"
)

// PartSuffix marks a file that is still being downloaded.
const PartSuffix = ".part"

const (
	// DefaultAttempts is the attempt budget for one download.
	DefaultAttempts = 20
	// DefaultChunkSize is the read size while streaming.
	DefaultChunkSize = 32 * 1024
	// DefaultIdleTimeout aborts a stream that delivers nothing for this long.
	DefaultIdleTimeout = 60 * time.Second
)

// ErrInFlight is returned when a destination is already being downloaded.
var ErrInFlight = errors.New("download already in progress for destination")

// Outcome is how a download ended.
type Outcome int

const (
	Completed Outcome = iota
	AlreadyComplete
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case AlreadyComplete:
		return "already_complete"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SkipReason explains a Skipped outcome. It is the type of the per-item
// terminal error that ended the download.
type SkipReason = errs.ErrorType

const (
	NotFound      = errs.ErrorTypeNotFound
	EmptyResource = errs.ErrorTypeEmptyResource
	InvalidRange  = errs.ErrorTypeInvalidRange
)

// skipReason returns the reason when err is a per-item terminal error.
func skipReason(err error) SkipReason {
	switch t := errs.TypeOf(err); t {
	case NotFound, EmptyResource, InvalidRange:
		return t
	}
	return ""
}

// Result describes a finished download.
type Result struct {
	Outcome  Outcome
	Reason   SkipReason
	Path     string
	Size     int64
	Resumed  bool
	Duration time.Duration
}

// Transport streams requests through the authenticated session. Headers set
// with SetHeader stick to every following request until cleared.
type Transport interface {
	Do(ctx context.Context, method, url string, header http.Header) (*http.Response, error)
	SetHeader(key, value string)
}

// Options configures a Downloader.
type Options struct {
	Attempts    int
	ChunkSize   int
	IdleTimeout time.Duration
	// InPlace writes straight to the destination instead of a .part file.
	InPlace   bool
	Bandwidth *ratelimit.Bandwidth
}

// Downloader fetches files with resume support. Only one download per
// destination may run at a time.
type Downloader struct {
	transport Transport
	exec      *fetch.Executor
	opts      Options
	logger    logger.Logger

	written atomic.Int64
	total   atomic.Int64
	active  atomic.Bool

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a Downloader. exec must drive the same session as transport.
func New(transport Transport, exec *fetch.Executor, opts Options, log logger.Logger) *Downloader {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	return &Downloader{
		transport: transport,
		exec:      exec,
		opts:      opts,
		logger:    logger.OrNop(log).WithField("component", "downloader"),
		inFlight:  make(map[string]struct{}),
	}
}

// Progress reports the bytes written so far for the current download, its
// expected size (-1 when unknown) and whether a transfer is running.
func (d *Downloader) Progress() (written, total int64, active bool) {
	return d.written.Load(), d.total.Load(), d.active.Load()
}

// PartPath returns where dest is written while in progress.
func (d *Downloader) PartPath(dest string) string {
	if d.opts.InPlace {
		return dest
	}
	return dest + PartSuffix
}

// Download fetches url into dest, resuming a partial file when one exists.
func (d *Downloader) Download(ctx context.Context, url, dest string) (*Result, error) {
	if err := d.acquire(dest); err != nil {
		return nil, err
	}
	defer d.release(dest)

	start := time.Now()
	log := d.logger.WithFields(map[string]interface{}{"url": url, "dest": dest})

	size, err := d.probe(ctx, url)
	if reason := skipReason(err); reason != "" {
		log.WithError(err).Warn("Skipping download")
		return &Result{Outcome: Skipped, Reason: reason, Path: dest, Duration: time.Since(start)}, nil
	}
	if err != nil {
		return nil, err
	}

	part := d.PartPath(dest)
	if err := os.MkdirAll(filepath.Dir(part), 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	have := fileSize(part)
	if size > 0 && have >= size {
		log.InfoWithFields("Partial file already complete", map[string]interface{}{
			"size":    size,
			"on_disk": have,
		})
		if err := d.finalize(part, dest, log); err != nil {
			return nil, err
		}
		return &Result{Outcome: AlreadyComplete, Path: dest, Size: have, Duration: time.Since(start)}, nil
	}
	if size < 0 && have > 0 {
		// Unknown size gives nothing to compare against.
		if err := os.Truncate(part, 0); err != nil {
			return nil, fmt.Errorf("failed to truncate partial file: %w", err)
		}
		have = 0
	}

	d.total.Store(size)
	d.written.Store(have)
	d.active.Store(true)
	defer d.idle()

	err = d.exec.Run(ctx, url, d.opts.Attempts, func(ctx context.Context) error {
		return d.stream(ctx, url, part, size, log)
	})
	if reason := skipReason(err); reason != "" {
		log.WithError(err).Warn("Skipping download")
		return &Result{Outcome: Skipped, Reason: reason, Path: dest, Duration: time.Since(start)}, nil
	}
	if err != nil {
		return nil, err
	}

	written := d.written.Load()
	if err := d.finalize(part, dest, log); err != nil {
		return nil, err
	}

	return &Result{
		Outcome:  Completed,
		Path:     dest,
		Size:     written,
		Resumed:  have > 0,
		Duration: time.Since(start),
	}, nil
}

// probe returns the remote size, -1 when the server does not report one.
// The HEAD request gets the executor's page attempt budget rather than the
// larger download budget.
func (d *Downloader) probe(ctx context.Context, url string) (int64, error) {
	var size int64 = -1

	err := d.exec.Run(ctx, url, 0, func(ctx context.Context) error {
		resp, err := d.transport.Do(ctx, http.MethodHead, url, nil)
		if err != nil {
			return err
		}
		resp.Body.Close()

		switch code := resp.StatusCode; {
		case code == http.StatusNotFound:
			return errs.NotFound(url, code)
		case code >= 500:
			return errs.ServerError(url, code)
		default:
			if err := fetch.CheckStatus(url, code); err != nil {
				return err
			}
		}
		size = resp.ContentLength
		return nil
	})
	if err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, errs.EmptyResource(url)
	}
	return size, nil
}

// stream performs one GET attempt, appending to part from its current size.
func (d *Downloader) stream(ctx context.Context, url, part string, size int64, log logger.Logger) error {
	offset := fileSize(part)
	if size > 0 && offset >= size {
		return nil
	}
	if offset > 0 {
		d.transport.SetHeader("Range", fmt.Sprintf("bytes=%d-", offset))
		log.DebugWithFields("Resuming download", map[string]interface{}{"offset": offset})
	}

	resp, err := d.transport.Do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch code := resp.StatusCode; {
	case code == http.StatusRequestedRangeNotSatisfiable:
		return errs.InvalidRange(url, code)
	case code == http.StatusNotFound:
		return errs.NotFound(url, code)
	case code >= 500:
		return errs.ServerError(url, code)
	case code >= 400:
		return errs.AuthLost(url, code)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if offset > 0 && resp.StatusCode != http.StatusPartialContent {
		log.Warn("Server ignored range request, restarting from zero")
		offset = 0
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	if size < 0 && resp.ContentLength >= 0 {
		d.total.Store(offset + resp.ContentLength)
	}
	d.written.Store(offset)

	f, err := os.OpenFile(part, flags, 0644)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, "failed to open partial file", err)
	}

	copyErr := d.copy(ctx, f, resp.Body)
	if err := f.Close(); err != nil && copyErr == nil {
		copyErr = errs.Wrap(errs.ErrorTypeUnknown, "failed to close partial file", err)
	}
	if copyErr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var typed *errs.Error
		if errors.As(copyErr, &typed) {
			return copyErr
		}
		return errs.Network(url, copyErr)
	}
	return nil
}

// copy streams body into f in ChunkSize reads, skipping empty reads. The body
// is closed when no data arrives within IdleTimeout.
func (d *Downloader) copy(ctx context.Context, f *os.File, body io.ReadCloser) error {
	var stalled atomic.Bool
	timer := time.AfterFunc(d.opts.IdleTimeout, func() {
		stalled.Store(true)
		body.Close()
	})
	defer timer.Stop()

	buf := make([]byte, d.opts.ChunkSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			timer.Reset(d.opts.IdleTimeout)
			if err := d.opts.Bandwidth.WaitN(ctx, n); err != nil {
				return err
			}
			if _, err := f.Write(buf[:n]); err != nil {
				return errs.Wrap(errs.ErrorTypeUnknown, "failed to write partial file", err)
			}
			d.written.Add(int64(n))
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			if stalled.Load() {
				return fmt.Errorf("no data for %s: %w", d.opts.IdleTimeout, rerr)
			}
			return rerr
		}
	}
}

// finalize moves part into dest, replacing any file already there.
func (d *Downloader) finalize(part, dest string, log logger.Logger) error {
	if part == dest {
		return nil
	}
	if _, err := os.Stat(dest); err == nil {
		log.Warn("Replacing existing file")
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to remove existing file: %w", err)
		}
	}
	if err := os.Rename(part, dest); err != nil {
		return fmt.Errorf("failed to move partial file into place: %w", err)
	}
	return nil
}

func (d *Downloader) idle() {
	d.active.Store(false)
	d.written.Store(0)
	d.total.Store(0)
}

func (d *Downloader) acquire(dest string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.inFlight[dest]; ok {
		return fmt.Errorf("%w: %s", ErrInFlight, dest)
	}
	d.inFlight[dest] = struct{}{}
	return nil
}

func (d *Downloader) release(dest string) {
	d.mu.Lock()
	delete(d.inFlight, dest)
	d.mu.Unlock()
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
