// Package adapters reads native assistant logs into conversation sessions.
//
// Each supported assistant (Claude Code, Codex, Goose) stores transcripts
// differently. An Adapter hides the storage format: it finds the most recent
// session, loads a session into ordered role-tagged messages, and tells the
// watcher which paths to observe.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/continuum/internal/config"
	"github.com/fyrsmithlabs/continuum/internal/conversation"
)

// Assistant names accepted by New.
const (
	ClaudeCode = "claude-code"
	Codex      = "codex"
	Goose      = "goose"
)

// StdinRef makes the JSONL adapters read a session from standard input.
const StdinRef = "-"

var (
	// ErrUnknownAssistant is returned by New for unsupported names.
	ErrUnknownAssistant = errors.New("unknown assistant")

	// ErrNoSessions is returned when an adapter finds nothing to import.
	ErrNoSessions = errors.New("no sessions found")

	// ErrSessionNotFound is returned when a session ref cannot be resolved.
	ErrSessionNotFound = errors.New("session not found")
)

// Adapter reads one assistant's native logs.
type Adapter interface {
	// Name returns the assistant name used in the archive layout.
	Name() string

	// LatestSession returns a ref for the most recently updated session.
	LatestSession(ctx context.Context) (string, error)

	// Load reads the session identified by ref.
	Load(ctx context.Context, ref string) (*conversation.Session, error)

	// WatchPaths returns the files or directories holding native logs.
	WatchPaths() []string

	// SessionRef maps a changed path reported by the watcher to a session
	// ref. ok is false when the path is not a session log.
	SessionRef(ctx context.Context, changedPath string) (ref string, ok bool, err error)
}

// Names returns the supported assistant names in sorted order.
func Names() []string {
	names := []string{ClaudeCode, Codex, Goose}
	sort.Strings(names)
	return names
}

// New returns the adapter for the named assistant. Names are case-insensitive.
func New(name string, cfg config.AdaptersConfig) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ClaudeCode:
		return NewClaudeCode(cfg.ClaudeProjectsDir), nil
	case Codex:
		return NewCodex(cfg.CodexSessionsDir), nil
	case Goose:
		return NewGoose(cfg.GooseDBPath), nil
	default:
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownAssistant, name, strings.Join(Names(), ", "))
	}
}

// ParseError records a native record that could not be parsed.
type ParseError struct {
	Line  int
	Error string
}

// ParseStats summarizes a JSONL parse.
type ParseStats struct {
	Lines      int
	ErrorCount int
	Errors     []ParseError // first maxStoredErrors only
}

const maxStoredErrors = 10

func (s *ParseStats) addError(line int, format string, args ...any) {
	s.ErrorCount++
	if len(s.Errors) < maxStoredErrors {
		s.Errors = append(s.Errors, ParseError{Line: line, Error: fmt.Sprintf(format, args...)})
	}
}

// sessionBuilder accumulates messages and the observed time range.
type sessionBuilder struct {
	session conversation.Session
}

func newSessionBuilder(id, assistant, source string) *sessionBuilder {
	return &sessionBuilder{session: conversation.Session{
		ID:        id,
		Assistant: assistant,
		Source:    source,
		Messages:  make([]conversation.Message, 0),
	}}
}

func (b *sessionBuilder) observe(ts string) {
	if ts == "" {
		return
	}
	if b.session.StartTime == "" {
		b.session.StartTime = ts
	}
	b.session.EndTime = ts
}

func (b *sessionBuilder) markCompacted() {
	b.session.Compacted = true
}

func (b *sessionBuilder) add(role, content, ts string) {
	if content == "" {
		return
	}
	b.session.Messages = append(b.session.Messages, conversation.Message{
		Role:      role,
		Content:   content,
		Timestamp: ts,
	})
}

func (b *sessionBuilder) build() *conversation.Session {
	s := b.session
	return &s
}

// sessionIDFromPath returns the file stem of a session log.
func sessionIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// newSessionID generates an identifier for sources that carry none.
func newSessionID() string {
	return uuid.New().String()
}

// latestFile walks root and returns the most recently modified file accepted
// by keep. Unreadable subtrees are skipped.
func latestFile(ctx context.Context, root string, keep func(path string, d os.DirEntry) bool) (string, error) {
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: directory %s does not exist", ErrNoSessions, root)
		}
		return "", fmt.Errorf("stat %s: %w", root, err)
	}

	var (
		latest     string
		latestTime time.Time
	)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !keep(path, d) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if latest == "" || info.ModTime().After(latestTime) {
			latest, latestTime = path, info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning %s: %w", root, err)
	}
	if latest == "" {
		return "", fmt.Errorf("%w under %s", ErrNoSessions, root)
	}
	return latest, nil
}

// resolveFileRef turns a ref into a log path. A ref naming an existing file is
// used as-is; otherwise it is treated as a session ID and matched against file
// stems under root.
func resolveFileRef(ctx context.Context, root, ref string, keep func(path string, d os.DirEntry) bool) (string, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return ref, nil
	}
	if strings.ContainsRune(ref, filepath.Separator) {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, ref)
	}

	var found string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !keep(path, d) {
			return nil
		}
		if sessionIDFromPath(path) == ref {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning %s: %w", root, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, ref)
	}
	return found, nil
}

// openRef opens a session log, or stdin for StdinRef.
func openRef(ref string, stdin io.Reader) (io.ReadCloser, error) {
	if ref == StdinRef {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return f, nil
}

func isJSONL(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".jsonl")
}
