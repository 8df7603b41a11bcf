package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"mediamirror/pkg/logger"
)

// DefaultInterval is how often the progress line is refreshed.
const DefaultInterval = 3 * time.Second

// Source exposes transfer counters. total is -1 or 0 when unknown.
type Source interface {
	Progress() (written, total int64, active bool)
}

// ReporterOptions configures a Reporter.
type ReporterOptions struct {
	Enabled  bool
	Interval time.Duration
	// Out receives the progress line; stderr when nil.
	Out io.Writer
	// Force writes even when Out is not a terminal.
	Force bool
}

// Reporter periodically renders one overwriting status line for the active
// download. It only reads the source's counters. written and total are read
// separately and may be momentarily inconsistent; the line is approximate.
type Reporter struct {
	src    Source
	opts   ReporterOptions
	out    io.Writer
	logger logger.Logger

	last     int64
	sampling bool
}

// NewReporter creates a Reporter over src.
func NewReporter(src Source, opts ReporterOptions, log logger.Logger) *Reporter {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	return &Reporter{
		src:    src,
		opts:   opts,
		out:    out,
		logger: logger.OrNop(log).WithField("component", "reporter"),
	}
}

// Run refreshes the line every interval until ctx is done. It returns at
// once when disabled or when the output is not a terminal.
func (r *Reporter) Run(ctx context.Context) error {
	if !r.opts.Enabled || r.src == nil {
		return nil
	}
	if !r.opts.Force && !IsTerminal(r.out) {
		r.logger.Debug("Output is not a terminal, progress line disabled")
		return nil
	}

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if line, ok := r.Sample(); ok {
				fmt.Fprint(r.out, line)
			}
		}
	}
}

// Sample reads the counters and returns the status line, or false when no
// transfer is running. The first sample of a transfer has no speed.
func (r *Reporter) Sample() (string, bool) {
	written, total, active := r.src.Progress()
	if !active {
		r.sampling = false
		return "", false
	}

	first := !r.sampling || written < r.last
	delta := written - r.last
	r.last = written
	r.sampling = true

	pct := 0.0
	if total > 0 {
		pct = float64(written) * 100 / float64(total)
	}
	if first {
		return fmt.Sprintf("   %.1f%%   \r", pct), true
	}

	speed := float64(delta) / r.opts.Interval.Seconds()
	return fmt.Sprintf("   %.1f%%  [%s/s]   \r", pct, FormatBytes(int64(speed))), true
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatBytes renders n with base-1024 units and two decimals. Zero is
// "0 B".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(byteUnits)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", v, byteUnits[i])
}
