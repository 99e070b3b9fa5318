package logging

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records entries twice: raw, through an observer, and rendered,
// through the same redacting JSON encoder a real logger uses. Assertions on
// transcript data should look at the rendered side, which is what reaches
// stderr.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
	rendered *zaptest.Buffer
}

// NewTestLogger creates an unsampled logger at TraceLevel.
func NewTestLogger() *TestLogger {
	cfg := NewDefaultConfig()
	cfg.Level = TraceLevel
	cfg.Format = "json"

	observedCore, observed := observer.New(TraceLevel)
	rendered := &zaptest.Buffer{}
	encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
	if err != nil {
		panic(err)
	}
	core := zapcore.NewTee(observedCore, zapcore.NewCore(encoder, zapcore.Lock(rendered), TraceLevel))

	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core), config: cfg},
		observed: observed,
		rendered: rendered,
	}
}

// All returns all logged entries.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns entries matching message substring.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessage(msg)
}

// Reset clears everything recorded so far.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
	t.rendered.Reset()
}

// Rendered returns the encoded entries as decoded JSON objects.
func (t *TestLogger) Rendered(tb testing.TB) []map[string]any {
	tb.Helper()
	var out []map[string]any
	for _, line := range t.rendered.Lines() {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			tb.Fatalf("undecodable log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

// FieldValues returns the rendered string values of key across entries whose
// message contains msg.
func (t *TestLogger) FieldValues(tb testing.TB, msg, key string) []string {
	tb.Helper()
	var values []string
	for _, entry := range t.Rendered(tb) {
		if m, _ := entry["msg"].(string); !strings.Contains(m, msg) {
			continue
		}
		if v, ok := entry[key].(string); ok {
			values = append(values, v)
		}
	}
	return values
}

// AssertLogged verifies an entry at level whose message contains msgContains.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	if t.observed.Filter(func(e observer.LoggedEntry) bool {
		return e.Level == level && strings.Contains(e.Message, msgContains)
	}).Len() == 0 {
		tb.Errorf("expected log at %v containing %q, got %d entries", level, msgContains, t.observed.Len())
	}
}

// AssertNotLogged verifies no entry at level contains msgContains.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	for _, e := range t.observed.All() {
		if e.Level == level && strings.Contains(e.Message, msgContains) {
			tb.Errorf("unexpected log at %v: %q", level, e.Message)
		}
	}
}

// AssertNoSecrets fails if any credential pattern from the default redaction
// rules survived encoding, or a sensitive key was written unmasked. Pasted
// credentials reach the logs through transcript-derived fields such as roles,
// excerpts and source paths.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	rules := NewDefaultConfig().Redaction
	patterns := make([]*regexp.Regexp, 0, len(rules.Patterns))
	for _, p := range rules.Patterns {
		patterns = append(patterns, regexp.MustCompile(p))
	}

	for _, line := range t.rendered.Lines() {
		for _, re := range patterns {
			if leak := re.FindString(line); leak != "" {
				tb.Errorf("credential %q reached log output: %s", leak, line)
			}
		}
	}
	for _, entry := range t.Rendered(tb) {
		for _, key := range rules.Fields {
			if v, ok := entry[key].(string); ok && v != "" && !strings.HasPrefix(v, "[REDACTED") {
				tb.Errorf("field %q written unmasked: %q", key, v)
			}
		}
	}
}
