// Package archive writes imported sessions as plain-text files.
//
// Layout:
//
//	<base>/
//	└── {assistant}/
//	    └── {YYYY-MM-DD}/           ← date of the session start
//	        └── {session id}/
//	            ├── session.json    ← pretty-printed metadata
//	            └── messages.jsonl  ← one message per line, ids from 1
//
// The archive is meant to be read by people and shell tools, so nothing here
// is binary or indexed.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/continuum/internal/config"
	"github.com/fyrsmithlabs/continuum/internal/conversation"
)

const (
	sessionFile  = "session.json"
	messagesFile = "messages.jsonl"

	dirPerm  = 0o700
	filePerm = 0o600
)

// Status is the lifecycle state recorded in session.json.
type Status string

const (
	StatusActive    Status = "active"
	StatusClosed    Status = "closed"
	StatusCompacted Status = "compacted"
)

// ErrInvalidRef is returned when a session ref cannot be used as a path.
var ErrInvalidRef = errors.New("invalid session ref")

// timeNow is replaced in tests.
var timeNow = time.Now

// SessionMeta describes a session to archive.
type SessionMeta struct {
	ID           string
	Assistant    string
	StartTime    string
	EndTime      string
	Status       Status
	MessageCount int
}

// Ref returns the archive location of the session.
func (m SessionMeta) Ref() SessionRef {
	return SessionRef{Assistant: m.Assistant, Date: ExtractDate(m.StartTime), ID: m.ID}
}

// SessionRef locates a session directory inside the archive.
type SessionRef struct {
	Assistant string
	Date      string
	ID        string
}

func (r SessionRef) validate() error {
	for _, part := range []struct{ name, value string }{
		{"assistant", r.Assistant},
		{"date", r.Date},
		{"session id", r.ID},
	} {
		if err := validateComponent(part.value); err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrInvalidRef, part.name, part.value, err)
		}
	}
	return nil
}

// validateComponent rejects values that would escape their directory.
func validateComponent(s string) error {
	switch {
	case s == "":
		return errors.New("empty")
	case len(s) > 255:
		return errors.New("too long")
	case s == "." || s == "..":
		return errors.New("path traversal")
	case strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0):
		return errors.New("contains a path separator")
	}
	return nil
}

// MessageRecord is one line of messages.jsonl.
type MessageRecord struct {
	ID        int     `json:"id"`
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	Timestamp *string `json:"timestamp"`
}

// sessionRecord is the on-disk shape of session.json.
type sessionRecord struct {
	ID           string  `json:"id"`
	Assistant    string  `json:"assistant"`
	StartTime    *string `json:"start_time"`
	EndTime      *string `json:"end_time"`
	Status       Status  `json:"status"`
	MessageCount int     `json:"message_count"`
	CreatedAt    string  `json:"created_at"`
}

// Writer writes sessions below a base directory. Writes are serialised.
type Writer struct {
	mu      sync.Mutex
	baseDir string
}

// NewWriter creates a writer rooted at baseDir. An empty baseDir selects
// DefaultBaseDir.
func NewWriter(baseDir string) (*Writer, error) {
	if baseDir == "" {
		dir, err := DefaultBaseDir()
		if err != nil {
			return nil, err
		}
		baseDir = dir
	}
	return &Writer{baseDir: config.ExpandHome(baseDir)}, nil
}

// DefaultBaseDir returns ~/Assistants/continuum-logs.
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, "Assistants", "continuum-logs"), nil
}

// BaseDir returns the archive root.
func (w *Writer) BaseDir() string { return w.baseDir }

// SessionDir returns the directory for ref without creating it.
func (w *Writer) SessionDir(ref SessionRef) string {
	return filepath.Join(w.baseDir, ref.Assistant, ref.Date, ref.ID)
}

// ExtractDate returns the calendar date of a source timestamp: the part
// before "T" for ISO 8601, the part before the space for SQLite timestamps,
// the value unchanged otherwise, and today's UTC date when ts is empty.
func ExtractDate(ts string) string {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return timeNow().UTC().Format(time.DateOnly)
	}
	if date, _, ok := strings.Cut(ts, "T"); ok {
		return date
	}
	if date, _, ok := strings.Cut(ts, " "); ok {
		return date
	}
	return ts
}

// WriteSession writes session.json and returns the session directory. A
// re-import keeps the original created_at.
func (w *Writer) WriteSession(meta SessionMeta) (string, error) {
	ref := meta.Ref()
	if err := ref.validate(); err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	dir := w.SessionDir(ref)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create session directory: %w", err)
	}

	status := meta.Status
	if status == "" {
		status = StatusClosed
	}
	rec := sessionRecord{
		ID:           meta.ID,
		Assistant:    meta.Assistant,
		StartTime:    nullable(meta.StartTime),
		EndTime:      nullable(meta.EndTime),
		Status:       status,
		MessageCount: meta.MessageCount,
		CreatedAt:    w.createdAt(filepath.Join(dir, sessionFile)),
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, sessionFile), data); err != nil {
		return "", err
	}
	return dir, nil
}

// createdAt returns the created_at of an existing session.json, or now.
func (w *Writer) createdAt(path string) string {
	var existing struct {
		CreatedAt string `json:"created_at"`
	}
	if data, err := os.ReadFile(path); err == nil && json.Unmarshal(data, &existing) == nil && existing.CreatedAt != "" {
		return existing.CreatedAt
	}
	return timeNow().UTC().Format(time.RFC3339)
}

// WriteMessages replaces messages.jsonl with messages, numbered from 1.
// Messages without a timestamp get defaultTS; the field is null when both
// are empty. The file is swapped in atomically so re-imports never leave
// duplicated or partial content behind.
func (w *Writer) WriteMessages(ctx context.Context, ref SessionRef, messages []conversation.Message, defaultTS string) error {
	if err := ref.validate(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	dir := w.SessionDir(ref)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".messages-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	for i, msg := range messages {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				cleanup()
				return err
			}
		}
		ts := msg.Timestamp
		if ts == "" {
			ts = defaultTS
		}
		rec := MessageRecord{ID: i + 1, Role: msg.Role, Content: msg.Content, Timestamp: nullable(ts)}
		if err := enc.Encode(rec); err != nil {
			cleanup()
			return fmt.Errorf("failed to write message %d: %w", i+1, err)
		}
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync messages: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close messages: %w", err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to chmod messages: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, messagesFile)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename messages: %w", err)
	}
	return nil
}

// UpdateSessionMetadata merges updates into session.json. Keys in updates
// replace existing keys; other keys are kept.
func (w *Writer) UpdateSessionMetadata(ref SessionRef, updates map[string]any) error {
	if err := ref.validate(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.SessionDir(ref), sessionFile)
	merged := make(map[string]any)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &merged); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if merged == nil {
			merged = make(map[string]any)
		}
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
			return fmt.Errorf("failed to create session directory: %w", err)
		}
	default:
		return fmt.Errorf("failed to read session: %w", err)
	}

	for k, v := range updates {
		merged[k] = v
	}

	out, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return writeFileAtomic(path, out)
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, filePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
