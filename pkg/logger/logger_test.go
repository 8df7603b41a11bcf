package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediamirror/pkg/config"
)

func newBufferLogger(buf *bytes.Buffer) *zerologLogger {
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: make(map[string]interface{})}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "disabled", cfg: &config.LoggingConfig{Level: "disabled"}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "loud"}, wantErr: true},
		{name: "nil config", cfg: nil},
		{
			name: "rotating file",
			cfg: &config.LoggingConfig{
				Level:      "info",
				File:       filepath.Join(dir, "logs", "mirror.log"),
				MaxSize:    10,
				MaxBackups: 7,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var console bytes.Buffer
			log, err := NewWithWriter(tt.cfg, &console)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, log)
			log.Info("hello")
		})
	}
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.log")
	var console bytes.Buffer

	log, err := NewWithWriter(&config.LoggingConfig{Level: "info", File: path, NoColor: true}, &console)
	require.NoError(t, err)

	log.WithField("item", "abc").Info("stored item")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"item":"abc"`)
	assert.Contains(t, string(data), `"app":"mediamirror"`)
	assert.Contains(t, console.String(), "stored item")
}

func TestNewRespectsLevel(t *testing.T) {
	var console bytes.Buffer
	log, err := NewWithWriter(&config.LoggingConfig{Level: "warn", NoColor: true}, &console)
	require.NoError(t, err)

	log.Info("quiet")
	log.Warn("loud")

	assert.NotContains(t, console.String(), "quiet")
	assert.Contains(t, console.String(), "loud")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"invalid", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestFieldChaining(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	base := log.WithField("run_id", "r1")
	base.WithFields(map[string]interface{}{"page": 2, "done": true}).Info("chained")
	base.Info("base only")

	out := buf.String()
	assert.Contains(t, out, `"run_id":"r1"`)
	assert.Contains(t, out, `"page":2`)
	assert.Contains(t, out, `"done":true`)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.NotContains(t, string(lines[1]), `"page"`)
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	assert.Same(t, log, log.WithError(nil))

	log.WithError(errors.New("connection reset")).Error("request failed")
	assert.Contains(t, buf.String(), "connection reset")
	assert.Contains(t, buf.String(), "request failed")
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf)

	log.InfoWithFields("typed", map[string]interface{}{
		"string":   "test",
		"int":      123,
		"int64":    int64(456),
		"float":    3.5,
		"bool":     true,
		"time":     time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		"duration": 5 * time.Second,
		"strings":  []string{"a", "b"},
		"cause":    errors.New("boom"),
		"custom":   struct{ Name string }{Name: "x"},
	})

	out := buf.String()
	assert.Contains(t, out, `"int64":456`)
	assert.Contains(t, out, `"strings":["a","b"]`)
	assert.Contains(t, out, `"cause":"boom"`)
	assert.Contains(t, out, `"Name":"x"`)
}

func TestHelpers(t *testing.T) {
	log := NewTestLogger()

	LogRequest(log, "GET", "https://example.com/a", 200, time.Millisecond)
	LogRequest(log, "GET", "https://example.com/b", 403, time.Millisecond)
	LogRequest(log, "GET", "https://example.com/c", 502, time.Millisecond)
	LogTransfer(log, "https://example.com/v.mp4", "/tmp/v.mp4", "completed", 10, nil)
	LogTransfer(log, "https://example.com/v.mp4", "/tmp/v.mp4", "failed", 0, errors.New("reset"))
	LogComponentStart(log, "reporter", map[string]interface{}{"interval": "3s"})
	LogComponentStop(log, "reporter", "done")

	assert.Len(t, log.GetMessagesByLevel("DEBUG"), 1)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)
	assert.Len(t, log.GetMessagesByLevel("ERROR"), 2)
	assert.True(t, log.HasMessage("Transfer finished"))

	starts := log.GetMessagesByLevel("INFO")
	require.NotEmpty(t, starts)
	assert.Equal(t, "reporter", starts[1].Fields["component"])
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "?", FormatPercent(5, 0))
	assert.Equal(t, "50.0%", FormatPercent(5, 10))
}

func TestTestLoggerScopes(t *testing.T) {
	log := NewTestLogger()
	scoped := log.WithField("item", "a").WithError(errors.New("bad"))
	scoped.WarnWithFields("skipped", map[string]interface{}{"reason": "not_found"})

	msgs := log.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "a", msgs[0].Fields["item"])
	assert.Equal(t, "not_found", msgs[0].Fields["reason"])
	assert.EqualError(t, msgs[0].Error, "bad")
	assert.Contains(t, log.String(), "[WARN] skipped")

	log.Clear()
	assert.Empty(t, log.GetMessages())
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := NewTestLogger()
	assert.Equal(t, Logger(l), OrNop(l))
}
