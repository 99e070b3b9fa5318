package logging

import (
	"context"
	"regexp"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)

	if assistant := AssistantFromContext(ctx); assistant != "" {
		fields = append(fields, zap.String("assistant", assistant))
	}
	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		fields = append(fields, zap.String("session.id", sessionID))
	}

	return fields
}

type assistantCtxKey struct{}
type sessionCtxKey struct{}

const maxIDLen = 128

// idPattern covers UUIDs, Codex rollout stems and Goose ids.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

func validID(id string) bool {
	return id != "" && utf8.ValidString(id) && len(id) <= maxIDLen && idPattern.MatchString(id)
}

// WithSessionID adds a session ID to context. IDs come from files on disk,
// so an unusable ID is ignored rather than rejected.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if !validID(sessionID) {
		return ctx
	}
	return context.WithValue(ctx, sessionCtxKey{}, sessionID)
}

// SessionIDFromContext extracts the session ID from context.
func SessionIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sessionCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithAssistant adds the assistant name to context.
func WithAssistant(ctx context.Context, assistant string) context.Context {
	if !validID(assistant) {
		return ctx
	}
	return context.WithValue(ctx, assistantCtxKey{}, assistant)
}

// AssistantFromContext extracts the assistant name from context.
func AssistantFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(assistantCtxKey{}).(string); ok {
		return s
	}
	return ""
}

type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context, or a nop logger if none is set.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
