package adapters

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.

	"github.com/fyrsmithlabs/continuum/internal/conversation"
)

const (
	gooseLatestQuery   = `SELECT id FROM sessions ORDER BY updated_at DESC LIMIT 1`
	gooseSessionQuery  = `SELECT 1 FROM sessions WHERE id = ?`
	gooseMessagesQuery = `SELECT role, content_json, timestamp FROM messages WHERE session_id = ? ORDER BY id ASC`
)

// GooseAdapter reads Goose's SQLite session store. Session refs are
// database session IDs.
type GooseAdapter struct {
	dbPath string
	now    func() time.Time
}

// NewGoose creates an adapter for the Goose sessions database.
func NewGoose(dbPath string) *GooseAdapter {
	return &GooseAdapter{dbPath: dbPath, now: time.Now}
}

func (a *GooseAdapter) Name() string { return Goose }

// WatchPaths returns the database directory so WAL writes are observed too.
func (a *GooseAdapter) WatchPaths() []string { return []string{filepath.Dir(a.dbPath)} }

// open opens the database read-only. Goose keeps writing while we read.
func (a *GooseAdapter) open(ctx context.Context) (*sql.DB, error) {
	if _, err := os.Stat(a.dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: goose database %s does not exist", ErrNoSessions, a.dbPath)
		}
		return nil, fmt.Errorf("stat goose database: %w", err)
	}

	dsn := "file:" + a.dbPath + "?mode=ro&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open goose database %q: %w", a.dbPath, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping goose database: %w", err)
	}
	return db, nil
}

// LatestSession returns the ID of the most recently updated session.
func (a *GooseAdapter) LatestSession(ctx context.Context) (string, error) {
	db, err := a.open(ctx)
	if err != nil {
		return "", err
	}
	defer db.Close()

	var id string
	if err := db.QueryRowContext(ctx, gooseLatestQuery).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w in %s", ErrNoSessions, a.dbPath)
		}
		return "", fmt.Errorf("query latest goose session: %w", err)
	}
	return id, nil
}

// SessionRef maps any change to the database files to the latest session.
func (a *GooseAdapter) SessionRef(ctx context.Context, changedPath string) (string, bool, error) {
	if !strings.HasPrefix(filepath.Base(changedPath), filepath.Base(a.dbPath)) {
		return "", false, nil
	}
	id, err := a.LatestSession(ctx)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Load reads all messages of a session in insertion order. The legacy
// "<db path>#<session id>" ref form is accepted too.
func (a *GooseAdapter) Load(ctx context.Context, ref string) (*conversation.Session, error) {
	if i := strings.LastIndexByte(ref, '#'); i >= 0 {
		ref = ref[i+1:]
	}
	if ref == "" {
		return nil, fmt.Errorf("%w: empty goose session id", ErrSessionNotFound)
	}

	db, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, gooseMessagesQuery, ref)
	if err != nil {
		return nil, fmt.Errorf("query goose messages: %w", err)
	}
	defer rows.Close()

	b := newSessionBuilder(ref, Goose, a.dbPath+"#"+ref)
	for rows.Next() {
		var (
			role        string
			contentJSON sql.NullString
			ts          sql.NullString
		)
		if err := rows.Scan(&role, &contentJSON, &ts); err != nil {
			return nil, fmt.Errorf("scan goose message: %w", err)
		}
		b.observe(ts.String)
		b.add(role, parseGooseContent(contentJSON.String), ts.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goose messages: %w", err)
	}
	rows.Close()

	session := b.build()
	if len(session.Messages) == 0 {
		var exists int
		err := db.QueryRowContext(ctx, gooseSessionQuery, ref).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, ref)
		}
		if err != nil {
			return nil, fmt.Errorf("query goose session: %w", err)
		}
	}
	if session.StartTime == "" {
		session.StartTime = a.now().UTC().Format(time.RFC3339)
	}
	return session, nil
}

type gooseContentItem struct {
	Type string  `json:"type,omitempty"`
	Text *string `json:"text,omitempty"`
}

// parseGooseContent joins the text fields of a content_json array with
// newlines. Unparsable JSON yields empty text.
func parseGooseContent(contentJSON string) string {
	var items []gooseContentItem
	if err := json.Unmarshal([]byte(contentJSON), &items); err != nil {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if item.Text != nil {
			parts = append(parts, *item.Text)
		}
	}
	return strings.Join(parts, "\n")
}
