package adapters

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/continuum/internal/conversation"
)

const gooseSchema = `
CREATE TABLE sessions (id TEXT PRIMARY KEY, updated_at TEXT NOT NULL);
CREATE TABLE messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content_json TEXT,
	timestamp TEXT
);`

// newGooseDB creates a Goose-shaped database with two sessions.
func newGooseDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(gooseSchema)
	require.NoError(t, err)

	stmts := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO sessions (id, updated_at) VALUES (?, ?)`, []any{"20251108_1", "2025-11-08T10:00:00Z"}},
		{`INSERT INTO sessions (id, updated_at) VALUES (?, ?)`, []any{"20251109_2", "2025-11-09T10:00:00Z"}},
		{`INSERT INTO sessions (id, updated_at) VALUES (?, ?)`, []any{"empty", "2025-11-01T10:00:00Z"}},
		{`INSERT INTO messages (session_id, role, content_json, timestamp) VALUES (?, ?, ?, ?)`,
			[]any{"20251109_2", "user", `[{"type":"text","text":"List the open PRs"}]`, "2025-11-09T09:59:00Z"}},
		{`INSERT INTO messages (session_id, role, content_json, timestamp) VALUES (?, ?, ?, ?)`,
			[]any{"20251109_2", "assistant", `[{"type":"toolRequest","id":"x"}]`, "2025-11-09T09:59:10Z"}},
		{`INSERT INTO messages (session_id, role, content_json, timestamp) VALUES (?, ?, ?, ?)`,
			[]any{"20251109_2", "assistant", `not json`, "2025-11-09T09:59:15Z"}},
		{`INSERT INTO messages (session_id, role, content_json, timestamp) VALUES (?, ?, ?, ?)`,
			[]any{"20251109_2", "assistant", `[{"type":"text","text":"Two open PRs:"},{"type":"text","text":"#12 and #14"}]`, "2025-11-09T09:59:20Z"}},
		{`INSERT INTO messages (session_id, role, content_json, timestamp) VALUES (?, ?, ?, ?)`,
			[]any{"20251108_1", "user", `[{"type":"text","text":"older"}]`, nil}},
	}
	for _, s := range stmts {
		_, err := db.Exec(s.query, s.args...)
		require.NoError(t, err)
	}
	return path
}

func TestGooseAdapter_LatestSession(t *testing.T) {
	adapter := NewGoose(newGooseDB(t))

	id, err := adapter.LatestSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20251109_2", id)
}

func TestGooseAdapter_Load(t *testing.T) {
	dbPath := newGooseDB(t)
	adapter := NewGoose(dbPath)

	session, err := adapter.Load(context.Background(), "20251109_2")
	require.NoError(t, err)

	assert.Equal(t, "20251109_2", session.ID)
	assert.Equal(t, Goose, session.Assistant)
	assert.Equal(t, dbPath+"#20251109_2", session.Source)
	assert.Equal(t, "2025-11-09T09:59:00Z", session.StartTime)
	assert.Equal(t, "2025-11-09T09:59:20Z", session.EndTime)
	assert.Equal(t, []conversation.Message{
		{Role: "user", Content: "List the open PRs", Timestamp: "2025-11-09T09:59:00Z"},
		{Role: "assistant", Content: "Two open PRs:\n#12 and #14", Timestamp: "2025-11-09T09:59:20Z"},
	}, session.Messages)
}

func TestGooseAdapter_LoadLegacyRef(t *testing.T) {
	dbPath := newGooseDB(t)

	session, err := NewGoose(dbPath).Load(context.Background(), dbPath+"#20251109_2")
	require.NoError(t, err)
	assert.Equal(t, "20251109_2", session.ID)
	assert.Len(t, session.Messages, 2)
}

func TestGooseAdapter_LoadNullTimestamps(t *testing.T) {
	fixed := time.Date(2025, 11, 9, 12, 0, 0, 0, time.UTC)
	adapter := NewGoose(newGooseDB(t))
	adapter.now = func() time.Time { return fixed }

	session, err := adapter.Load(context.Background(), "20251108_1")
	require.NoError(t, err)
	assert.Equal(t, "2025-11-09T12:00:00Z", session.StartTime)
	require.Len(t, session.Messages, 1)
	assert.Empty(t, session.Messages[0].Timestamp)
}

func TestGooseAdapter_LoadEmptySession(t *testing.T) {
	session, err := NewGoose(newGooseDB(t)).Load(context.Background(), "empty")
	require.NoError(t, err)
	assert.Empty(t, session.Messages)
}

func TestGooseAdapter_LoadErrors(t *testing.T) {
	dbPath := newGooseDB(t)
	ctx := context.Background()

	_, err := NewGoose(dbPath).Load(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = NewGoose(dbPath).Load(ctx, dbPath+"#")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	missing := NewGoose(filepath.Join(t.TempDir(), "sessions.db"))
	_, err = missing.Load(ctx, "x")
	assert.ErrorIs(t, err, ErrNoSessions)
	_, err = missing.LatestSession(ctx)
	assert.ErrorIs(t, err, ErrNoSessions)
}

func TestGooseAdapter_LatestSessionEmptyDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(gooseSchema)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = NewGoose(path).LatestSession(context.Background())
	assert.ErrorIs(t, err, ErrNoSessions)
}

func TestGooseAdapter_SessionRef(t *testing.T) {
	dbPath := newGooseDB(t)
	adapter := NewGoose(dbPath)
	ctx := context.Background()

	ref, ok, err := adapter.SessionRef(ctx, dbPath+"-wal")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "20251109_2", ref)

	_, ok, err = adapter.SessionRef(ctx, filepath.Join(filepath.Dir(dbPath), "other.log"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseGooseContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single text", `[{"type":"text","text":"hello"}]`, "hello"},
		{"joined with newline", `[{"type":"text","text":"a"},{"type":"text","text":"b"}]`, "a\nb"},
		{"no text fields", `[{"type":"toolResponse","id":"1"}]`, ""},
		{"empty text kept", `[{"text":""},{"text":"x"}]`, "\nx"},
		{"invalid json", `{{`, ""},
		{"empty", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseGooseContent(tt.in))
		})
	}
}
