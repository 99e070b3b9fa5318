package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fyrsmithlabs/continuum/internal/conversation"
)

// CodexAdapter reads ~/.codex/sessions/YYYY/MM/DD/*.jsonl rollout files.
type CodexAdapter struct {
	sessionsDir string
	stdin       io.Reader
	now         func() time.Time
}

// NewCodex creates an adapter rooted at the Codex sessions dir.
func NewCodex(sessionsDir string) *CodexAdapter {
	return &CodexAdapter{sessionsDir: sessionsDir, stdin: os.Stdin, now: time.Now}
}

// codexEntry is one line of a Codex rollout file.
type codexEntry struct {
	Type      string        `json:"type"`
	Timestamp string        `json:"timestamp,omitempty"`
	Payload   *codexPayload `json:"payload,omitempty"`
}

type codexPayload struct {
	Role    string         `json:"role,omitempty"`
	Content []codexContent `json:"content,omitempty"`
}

type codexContent struct {
	Type string  `json:"type"`
	Text *string `json:"text,omitempty"`
}

func (a *CodexAdapter) Name() string { return Codex }

func (a *CodexAdapter) WatchPaths() []string { return []string{a.sessionsDir} }

func (a *CodexAdapter) isSessionLog(path string, _ os.DirEntry) bool {
	return isJSONL(path)
}

// LatestSession returns the most recently modified rollout file.
func (a *CodexAdapter) LatestSession(ctx context.Context) (string, error) {
	return latestFile(ctx, a.sessionsDir, a.isSessionLog)
}

// SessionRef accepts changed rollout files as-is.
func (a *CodexAdapter) SessionRef(_ context.Context, changedPath string) (string, bool, error) {
	return changedPath, a.isSessionLog(changedPath, nil), nil
}

// Load parses a rollout file. Only response_item entries with a role become
// messages; their text segments are concatenated without a separator.
func (a *CodexAdapter) Load(ctx context.Context, ref string) (*conversation.Session, error) {
	id := newSessionID()
	if ref != StdinRef {
		path, err := resolveFileRef(ctx, a.sessionsDir, ref, a.isSessionLog)
		if err != nil {
			return nil, err
		}
		ref, id = path, sessionIDFromPath(path)
	}

	r, err := openRef(ref, a.stdin)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	b := newSessionBuilder(id, Codex, ref)
	stats := &ParseStats{}
	err = scanJSONL(ctx, r, stats, func(line []byte) error {
		var entry codexEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("JSON parse error: %w", err)
		}
		b.observe(entry.Timestamp)
		if entry.Type == "compacted" {
			b.markCompacted()
			return nil
		}

		if entry.Type != "response_item" || entry.Payload == nil || entry.Payload.Role == "" {
			return nil
		}

		var sb strings.Builder
		for _, c := range entry.Payload.Content {
			if c.Text != nil {
				sb.WriteString(*c.Text)
			}
		}
		b.add(entry.Payload.Role, sb.String(), entry.Timestamp)
		return nil
	})
	if err != nil {
		return nil, err
	}

	session := b.build()
	session.SkippedLines = stats.ErrorCount
	if session.StartTime == "" {
		session.StartTime = a.now().UTC().Format(time.RFC3339)
	}
	return session, nil
}
