package ui

import (
	"fmt"
	"time"
)

// Summary counts what a mirror run did with each item.
type Summary struct {
	Completed       int
	AlreadyComplete int
	Existing        int
	Skipped         int
	Failed          int
	MetadataOnly    int
	Bytes           int64
	StartTime       time.Time
}

// NewSummary starts a summary now.
func NewSummary() *Summary {
	return &Summary{StartTime: time.Now()}
}

// AddCompleted records a finished transfer of n bytes.
func (s *Summary) AddCompleted(n int64) {
	s.Completed++
	s.Bytes += n
}

// AddAlreadyComplete records a partial file that needed no transfer.
func (s *Summary) AddAlreadyComplete() { s.AlreadyComplete++ }

// AddExisting records an item whose video was already in the library.
func (s *Summary) AddExisting() { s.Existing++ }

// AddSkipped records an item the server could not serve.
func (s *Summary) AddSkipped() { s.Skipped++ }

// AddFailed records an item abandoned after an error.
func (s *Summary) AddFailed() { s.Failed++ }

// AddMetadataOnly records an item whose metadata was saved without video.
func (s *Summary) AddMetadataOnly() { s.MetadataOnly++ }

// Processed counts items that count towards the video limit.
func (s *Summary) Processed() int {
	return s.Completed + s.AlreadyComplete + s.MetadataOnly
}

// Elapsed returns the time since the run started.
func (s *Summary) Elapsed() time.Duration {
	return time.Since(s.StartTime)
}

// Rate returns the average transfer rate in bytes per second.
func (s *Summary) Rate() float64 {
	secs := s.Elapsed().Seconds()
	if secs == 0 {
		return 0
	}
	return float64(s.Bytes) / secs
}

// Fields returns the summary as log fields.
func (s *Summary) Fields() map[string]interface{} {
	return map[string]interface{}{
		"completed":        s.Completed,
		"already_complete": s.AlreadyComplete,
		"existing":         s.Existing,
		"skipped":          s.Skipped,
		"failed":           s.Failed,
		"metadata_only":    s.MetadataOnly,
		"bytes":            s.Bytes,
		"elapsed":          s.Elapsed().Round(time.Second).String(),
	}
}

// Print writes the summary block.
func (s *Summary) Print(p *Printer) {
	p.Highlight("[SUMMARY]")
	p.Info("Downloaded", fmt.Sprintf("%d (%s)", s.Completed, FormatBytes(s.Bytes)))
	p.Info("Already complete", fmt.Sprintf("%d", s.AlreadyComplete))
	p.Info("In library", fmt.Sprintf("%d", s.Existing))
	if s.MetadataOnly > 0 {
		p.Info("Metadata only", fmt.Sprintf("%d", s.MetadataOnly))
	}
	p.Info("Skipped", fmt.Sprintf("%d", s.Skipped))
	if s.Failed > 0 {
		p.Warning(fmt.Sprintf("Failed: %d", s.Failed))
	}
	p.Dim(fmt.Sprintf("Elapsed %s, average %s/s", s.Elapsed().Round(time.Second), FormatBytes(int64(s.Rate()))))
}
