package adapters

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/continuum/internal/conversation"
)

const claudeFixture = `{"type":"summary","summary":"Fixing the uploader"}
{"type":"user","timestamp":"2025-11-09T14:00:00Z","sessionId":"s1","message":{"role":"user","content":"Fix the failing upload test"}}
{"type":"assistant","timestamp":"2025-11-09T14:00:05Z","message":{"role":"assistant","content":[{"type":"thinking","thinking":"look at retries"},{"type":"text","text":"Looking at it."},{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"go test ./..."}},{"type":"text","text":"Found the bug in the retry loop."}]}}
this line is not json

{"type":"user","timestamp":"2025-11-09T14:00:06Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"ok"}]}}
{"type":"user","timestamp":"2025-11-09T14:00:07Z","message":{"role":"user","content":[{"type":"text","text":"Ship it"}]}}
{"type":"assistant","timestamp":"2025-11-09T14:00:08Z","message":{"role":"assistant","content":42}}
`

func TestClaudeCodeAdapter_Load(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "-home-dev-uploader", "6f1c2a7e.jsonl")
	writeFile(t, path, claudeFixture, time.Now())

	adapter := NewClaudeCode(root)
	session, stats, err := adapter.loadWithStats(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "6f1c2a7e", session.ID)
	assert.Equal(t, ClaudeCode, session.Assistant)
	assert.Equal(t, path, session.Source)
	assert.Equal(t, "2025-11-09T14:00:00Z", session.StartTime)
	assert.Equal(t, "2025-11-09T14:00:08Z", session.EndTime)
	assert.Equal(t, 2, session.SkippedLines)
	assert.False(t, session.Compacted)

	assert.Equal(t, []conversation.Message{
		{Role: "user", Content: "Fix the failing upload test", Timestamp: "2025-11-09T14:00:00Z"},
		{Role: "assistant", Content: "Looking at it.\nFound the bug in the retry loop.", Timestamp: "2025-11-09T14:00:05Z"},
		{Role: "user", Content: "Ship it", Timestamp: "2025-11-09T14:00:07Z"},
	}, session.Messages)

	assert.Equal(t, 7, stats.Lines)
	assert.Equal(t, 2, stats.ErrorCount)
	require.Len(t, stats.Errors, 2)
	assert.Equal(t, 4, stats.Errors[0].Line)
	assert.Contains(t, stats.Errors[0].Error, "JSON parse error")
	assert.Equal(t, 8, stats.Errors[1].Line)
	assert.Contains(t, stats.Errors[1].Error, "message parse error")
}

func TestClaudeCodeAdapter_LoadBySessionID(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "proj", "abc.jsonl"), claudeFixture, time.Now())

	session, err := NewClaudeCode(root).Load(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", session.ID)
	assert.Len(t, session.Messages, 3)

	_, err = NewClaudeCode(root).Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestClaudeCodeAdapter_LoadStdin(t *testing.T) {
	adapter := NewClaudeCode(t.TempDir())
	adapter.stdin = strings.NewReader(claudeFixture)

	session, err := adapter.Load(context.Background(), StdinRef)
	require.NoError(t, err)

	_, err = uuid.Parse(session.ID)
	assert.NoError(t, err, "stdin sessions get a generated id")
	assert.Equal(t, StdinRef, session.Source)
	assert.Len(t, session.Messages, 3)
}

func TestClaudeCodeAdapter_LatestSession(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2025, 11, 9, 12, 0, 0, 0, time.UTC)

	writeFile(t, filepath.Join(root, "proj-a", "old.jsonl"), "{}", base)
	writeFile(t, filepath.Join(root, "proj-b", "current.jsonl"), "{}", base.Add(time.Hour))
	writeFile(t, filepath.Join(root, "proj-b", "agent-1234.jsonl"), "{}", base.Add(2*time.Hour))
	writeFile(t, filepath.Join(root, "proj-b", "notes.md"), "#", base.Add(3*time.Hour))

	got, err := NewClaudeCode(root).LatestSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "proj-b", "current.jsonl"), got)

	_, err = NewClaudeCode(t.TempDir()).LatestSession(context.Background())
	assert.ErrorIs(t, err, ErrNoSessions)
}

func TestClaudeCodeAdapter_SessionRef(t *testing.T) {
	adapter := NewClaudeCode("/projects")
	ctx := context.Background()

	ref, ok, err := adapter.SessionRef(ctx, "/projects/p/abc.jsonl")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/projects/p/abc.jsonl", ref)

	_, ok, _ = adapter.SessionRef(ctx, "/projects/p/agent-abc.jsonl")
	assert.False(t, ok)

	_, ok, _ = adapter.SessionRef(ctx, "/projects/p/abc.jsonl.tmp")
	assert.False(t, ok)
}

func TestParseClaudeMessage(t *testing.T) {
	tests := []struct {
		name     string
		entry    claudeEntry
		wantRole string
		wantText string
		wantErr  bool
	}{
		{
			name:     "string content",
			entry:    claudeEntry{Type: "user", Message: []byte(`{"role":"user","content":"hello"}`)},
			wantRole: "user",
			wantText: "hello",
		},
		{
			name:     "role falls back to entry type",
			entry:    claudeEntry{Type: "assistant", Message: []byte(`{"content":[{"type":"text","text":"hi"}]}`)},
			wantRole: "assistant",
			wantText: "hi",
		},
		{
			name:     "only thinking",
			entry:    claudeEntry{Type: "assistant", Message: []byte(`{"role":"assistant","content":[{"type":"thinking","thinking":"..."}]}`)},
			wantRole: "assistant",
		},
		{
			name:     "null content",
			entry:    claudeEntry{Type: "user", Message: []byte(`{"role":"user","content":null}`)},
			wantRole: "user",
		},
		{
			name:     "missing message",
			entry:    claudeEntry{Type: "user"},
			wantRole: "user",
		},
		{
			name:    "numeric content",
			entry:   claudeEntry{Type: "user", Message: []byte(`{"role":"user","content":7}`)},
			wantErr: true,
		},
		{
			name:    "message not an object",
			entry:   claudeEntry{Type: "user", Message: []byte(`"text"`)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, text, err := parseClaudeMessage(tt.entry)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, role)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

func TestClaudeCodeAdapter_LoadCompacted(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "proj", "compacted.jsonl")
	writeFile(t, path, claudeFixture+
		`{"type":"user","isCompactSummary":true,"timestamp":"2025-11-09T15:00:00Z","message":{"role":"user","content":"This session is being continued from a previous conversation."}}`+"\n",
		time.Now())

	session, err := NewClaudeCode(root).Load(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, session.Compacted)
	assert.Equal(t, "This session is being continued from a previous conversation.", session.Messages[len(session.Messages)-1].Content)
}
