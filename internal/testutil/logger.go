package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// NewTestLogger returns a debug-level logger that keeps test output quiet
// unless the test fails.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// NewNullLogger drops everything.
func NewNullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// LogSink collects JSON log lines written by a logger from NewCapturingLogger.
type LogSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *LogSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// Entries decodes every line written so far. Lines that are not JSON are skipped.
func (s *LogSink) Entries() []map[string]any {
	s.mu.Lock()
	raw := s.buf.String()
	s.mu.Unlock()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries
}

// NewCapturingLogger returns a debug-level JSON logger and the sink it writes to.
func NewCapturingLogger() (*slog.Logger, *LogSink) {
	sink := &LogSink{}
	return slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: slog.LevelDebug})), sink
}
