package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/continuum/internal/conversation"
)

// ClaudeCodeAdapter reads ~/.claude/projects/<project>/<session>.jsonl files.
type ClaudeCodeAdapter struct {
	projectsDir string
	stdin       io.Reader
}

// NewClaudeCode creates an adapter rooted at the Claude Code projects dir.
func NewClaudeCode(projectsDir string) *ClaudeCodeAdapter {
	return &ClaudeCodeAdapter{projectsDir: projectsDir, stdin: os.Stdin}
}

// claudeEntry is one line of a Claude Code session log.
type claudeEntry struct {
	Type      string          `json:"type"`
	Compact   bool            `json:"isCompactSummary,omitempty"`
	Message   json.RawMessage `json:"message,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// claudeMessage is the nested API message. Content is either a string or a
// list of content blocks.
type claudeMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type claudeBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func (a *ClaudeCodeAdapter) Name() string { return ClaudeCode }

func (a *ClaudeCodeAdapter) WatchPaths() []string { return []string{a.projectsDir} }

// isSessionLog accepts session logs and rejects sub-agent logs.
func (a *ClaudeCodeAdapter) isSessionLog(path string, _ os.DirEntry) bool {
	return isJSONL(path) && !strings.HasPrefix(filepath.Base(path), "agent-")
}

// LatestSession returns the most recently modified session log across all
// projects.
func (a *ClaudeCodeAdapter) LatestSession(ctx context.Context) (string, error) {
	return latestFile(ctx, a.projectsDir, a.isSessionLog)
}

// SessionRef accepts changed session logs as-is.
func (a *ClaudeCodeAdapter) SessionRef(_ context.Context, changedPath string) (string, bool, error) {
	return changedPath, a.isSessionLog(changedPath, nil), nil
}

// Load parses a session log. ref is a path, a session ID under the projects
// dir, or StdinRef. Malformed lines are counted in SkippedLines.
func (a *ClaudeCodeAdapter) Load(ctx context.Context, ref string) (*conversation.Session, error) {
	session, _, err := a.loadWithStats(ctx, ref)
	return session, err
}

// loadWithStats is Load with per-line parse diagnostics.
func (a *ClaudeCodeAdapter) loadWithStats(ctx context.Context, ref string) (*conversation.Session, *ParseStats, error) {
	id := newSessionID()
	if ref != StdinRef {
		path, err := resolveFileRef(ctx, a.projectsDir, ref, a.isSessionLog)
		if err != nil {
			return nil, nil, err
		}
		ref, id = path, sessionIDFromPath(path)
	}

	r, err := openRef(ref, a.stdin)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	b := newSessionBuilder(id, ClaudeCode, ref)
	stats := &ParseStats{}
	err = scanJSONL(ctx, r, stats, func(line []byte) error {
		var entry claudeEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("JSON parse error: %w", err)
		}
		b.observe(entry.Timestamp)
		if entry.Compact {
			b.markCompacted()
		}

		if entry.Type != conversation.RoleUser && entry.Type != conversation.RoleAssistant {
			return nil
		}

		role, text, err := parseClaudeMessage(entry)
		if err != nil {
			return fmt.Errorf("message parse error: %w", err)
		}
		b.add(role, text, entry.Timestamp)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	session := b.build()
	session.SkippedLines = stats.ErrorCount
	return session, stats, nil
}

// parseClaudeMessage extracts the role and visible text of an entry. Only
// "text" blocks count: thinking, tool_use and tool_result blocks are dropped.
func parseClaudeMessage(entry claudeEntry) (string, string, error) {
	if len(entry.Message) == 0 {
		return entry.Type, "", nil
	}

	var msg claudeMessage
	if err := json.Unmarshal(entry.Message, &msg); err != nil {
		return "", "", err
	}
	role := msg.Role
	if role == "" {
		role = entry.Type
	}

	if len(msg.Content) == 0 || string(msg.Content) == "null" {
		return role, "", nil
	}

	var s string
	if err := json.Unmarshal(msg.Content, &s); err == nil {
		return role, s, nil
	}

	var blocks []claudeBlock
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return "", "", errors.New("content is neither a string nor a list of blocks")
	}
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return role, strings.Join(parts, "\n"), nil
}
