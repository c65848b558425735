// internal/logging/testing.go
package logging

import (
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger backed by an in-memory observer.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger creates a logger that records every entry at Trace and above.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core)},
		observed: observed,
	}
}

// All returns all logged entries.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns entries whose message contains msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessageSnippet(msg)
}

// Reset clears all logged entries.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

// AssertLogged fails tb unless an entry at level contains msgContains.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			return
		}
	}
	tb.Errorf("expected log at %v containing %q, logs: %+v", level, msgContains, t.observed.All())
}

// AssertNotLogged fails tb if an entry at level contains msgContains.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			tb.Errorf("unexpected log at %v containing %q", level, msgContains)
		}
	}
}

// AssertField fails tb unless an entry containing msg carries key=expected.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected interface{}) {
	tb.Helper()
	for _, entry := range t.FilterMessage(msg).All() {
		if got, ok := entry.ContextMap()[key]; ok && got == expected {
			return
		}
	}
	tb.Errorf("field %q=%v not found in message %q", key, expected, msg)
}

// AssertNoSecrets fails tb if any entry carries an API key or bearer token.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)bearer\s+[a-z0-9._-]{8,}`),
		regexp.MustCompile(`sk-[a-zA-Z0-9-]{20,}`),
		regexp.MustCompile(`(?i)api[_-]?key[=:]\s*[a-z0-9]{8,}`),
	}
	for _, entry := range t.observed.All() {
		for _, re := range patterns {
			if re.MatchString(entry.Message) {
				tb.Errorf("secret in message: %q", entry.Message)
			}
		}
		for _, field := range entry.Context {
			if field.Type != zapcore.StringType {
				continue
			}
			for _, re := range patterns {
				if re.MatchString(field.String) {
					tb.Errorf("secret in field %q: %q", field.Key, field.String)
				}
			}
		}
	}
}

// AssertTraceCorrelation fails tb unless an entry containing msg has trace_id.
func (t *TestLogger) AssertTraceCorrelation(tb testing.TB, msg string) {
	tb.Helper()
	for _, entry := range t.FilterMessage(msg).All() {
		if _, ok := entry.ContextMap()["trace_id"]; ok {
			return
		}
	}
	tb.Errorf("message %q missing trace_id", msg)
}
