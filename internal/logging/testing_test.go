package logging

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// failureTB records Errorf calls instead of failing the test.
type failureTB struct {
	testing.TB
	failures []string
}

func (f *failureTB) Helper() {}

func (f *failureTB) Errorf(format string, args ...any) {
	f.failures = append(f.failures, fmt.Sprintf(format, args...))
}

func (f *failureTB) Fatalf(format string, args ...any) {
	f.Errorf(format, args...)
}

func TestTestLogger_CapturesTrace(t *testing.T) {
	tl := NewTestLogger()
	assert.True(t, tl.Enabled(TraceLevel))

	tl.Trace(context.Background(), "message dropped", zap.String("rule", "bare-acknowledgment"))

	tl.AssertLogged(t, TraceLevel, "message dropped")
	assert.Equal(t, []string{"bare-acknowledgment"}, tl.FieldValues(t, "message dropped", "rule"))
}

func TestTestLogger_AssertNotLogged(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "session imported")

	tl.AssertNotLogged(t, zapcore.ErrorLevel, "session imported")
	tl.AssertNotLogged(t, zapcore.InfoLevel, "session skipped")

	ft := &failureTB{}
	tl.AssertNotLogged(ft, zapcore.InfoLevel, "imported")
	assert.Len(t, ft.failures, 1)
}

func TestTestLogger_Rendered(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "compressed", zap.Int("kept", 7), zap.String("role", "assistant"))

	entries := tl.Rendered(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "compressed", entries[0]["msg"])
	assert.Equal(t, "info", entries[0]["level"])
	assert.EqualValues(t, 7, entries[0]["kept"])
	assert.Equal(t, []string{"assistant"}, tl.FieldValues(t, "compressed", "role"))
}

func TestTestLogger_AssertNoSecrets(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	// Credentials pasted into a transcript and echoed into log fields.
	tl.Trace(ctx, "message dropped",
		zap.String("role", "user sk-abcdefghijklmnopqrstuv"),
		zap.String("excerpt", "<system-reminder>Authorization: Bearer eyJhbGciOi</system-reminder>"),
		zap.String("token", "ghp_0123456789"))
	tl.Info(ctx, "safe", zap.String("path", "/home/dev/.codex/sessions"))

	tl.AssertNoSecrets(t)

	roles := tl.FieldValues(t, "message dropped", "role")
	require.Len(t, roles, 1)
	assert.Equal(t, "user [REDACTED:pattern]", roles[0])
	assert.Equal(t, []string{"[REDACTED]"}, tl.FieldValues(t, "message dropped", "token"))
}

func TestTestLogger_AssertNoSecretsDetectsLeaks(t *testing.T) {
	tl := NewTestLogger()
	// Output written around the redacting encoder, as a raw zap logger would.
	tl.rendered.WriteString(`{"level":"info","msg":"leak","role":"sk-abcdefghijklmnopqrstuv","password":"hunter2"}` + "\n")

	ft := &failureTB{}
	tl.AssertNoSecrets(ft)
	assert.Len(t, ft.failures, 2)
}

func TestTestLogger_Reset(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "first")
	assert.Len(t, tl.All(), 1)
	assert.Len(t, tl.Rendered(t), 1)

	tl.Reset()
	assert.Empty(t, tl.All())
	assert.Empty(t, tl.Rendered(t))
}
