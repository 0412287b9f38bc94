// Package testutil provides test doubles shared by package tests: a
// scriptable host editor and a log-capturing slog logger.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// TestLogger captures structured logs for assertion in tests.
type TestLogger struct {
	mu      sync.RWMutex
	entries []LogEntry
	Logger  *slog.Logger
}

// LogEntry represents a captured log entry.
type LogEntry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// NewTestLogger creates a logger that captures every entry at debug level
// and above.
func NewTestLogger(t *testing.T) *TestLogger {
	t.Helper()
	tl := &TestLogger{}
	tl.Logger = slog.New(&captureHandler{
		logger: tl,
		inner:  slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
	return tl
}

// captureHandler records entries, including attrs added with With.
type captureHandler struct {
	logger *TestLogger
	inner  slog.Handler
	attrs  []slog.Attr
	group  string
}

func (h *captureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Level:   r.Level,
		Message: r.Message,
		Attrs:   make(map[string]any, len(h.attrs)+r.NumAttrs()),
	}
	for _, a := range h.attrs {
		entry.Attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.Attrs[h.qualify(a.Key)] = a.Value.Any()
		return true
	})

	h.logger.mu.Lock()
	h.logger.entries = append(h.logger.entries, entry)
	h.logger.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		merged = append(merged, slog.Attr{Key: h.qualify(a.Key), Value: a.Value})
	}
	return &captureHandler{logger: h.logger, inner: h.inner, attrs: merged, group: h.group}
}

func (h *captureHandler) qualify(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	return &captureHandler{logger: h.logger, inner: h.inner, attrs: h.attrs, group: h.qualify(name)}
}

// Entries returns a copy of all captured log entries.
func (l *TestLogger) Entries() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]LogEntry(nil), l.entries...)
}

// EntriesContaining returns entries whose message contains substring.
func (l *TestLogger) EntriesContaining(substring string) []LogEntry {
	var result []LogEntry
	for _, e := range l.Entries() {
		if strings.Contains(e.Message, substring) {
			result = append(result, e)
		}
	}
	return result
}

// CountLevel returns the number of entries at level.
func (l *TestLogger) CountLevel(level slog.Level) int {
	count := 0
	for _, e := range l.Entries() {
		if e.Level == level {
			count++
		}
	}
	return count
}

// AssertContains fails the test unless some entry's message contains msg.
func (l *TestLogger) AssertContains(t *testing.T, msg string) {
	t.Helper()
	if len(l.EntriesContaining(msg)) == 0 {
		t.Errorf("expected log to contain message %q", msg)
	}
}

// AssertNoErrors fails the test if any ERROR entry was logged.
func (l *TestLogger) AssertNoErrors(t *testing.T) {
	t.Helper()
	var messages []string
	for _, e := range l.Entries() {
		if e.Level >= slog.LevelError {
			messages = append(messages, e.Message)
		}
	}
	if len(messages) > 0 {
		t.Errorf("expected no errors, got %d: %v", len(messages), messages)
	}
}

// AssertAttrValue fails the test unless an entry with message msg carries
// key=value.
func (l *TestLogger) AssertAttrValue(t *testing.T, msg, key string, value any) {
	t.Helper()
	for _, e := range l.EntriesContaining(msg) {
		if v, ok := e.Attrs[key]; ok && v == value {
			return
		}
	}
	t.Errorf("expected a %q entry with %s=%v", msg, key, value)
}
