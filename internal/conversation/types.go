// Package conversation defines the message and session records shared by the
// transcript adapters, the noise filter, the loop detector and the archive.
//
// A Message is a role-tagged piece of text in chronological order and a
// Session is one assistant run. Nothing here validates roles or content:
// adapters normalize their native formats into these records and everything
// downstream treats Role as opaque.
package conversation

// Role tags the speaker of a message. The set is open: adapters emit the
// constants below, but any string is carried through unchanged.
type Role = string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is a single role-tagged piece of transcript text.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Timestamp is the source timestamp, if the native log carried one.
	// Kept as the source string (RFC3339 or SQLite "YYYY-MM-DD HH:MM:SS").
	Timestamp string `json:"timestamp,omitempty"`
}

// NewMessage creates a message without a timestamp.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// Session is one assistant conversation loaded from a native log.
type Session struct {
	// ID identifies the session within its assistant (file stem or database id).
	ID string `json:"id"`

	// Assistant is the adapter name that produced the session.
	Assistant string `json:"assistant"`

	// Source is where the session was read from (file path or database ref).
	Source string `json:"source,omitempty"`

	// StartTime is the first timestamp observed, in source format.
	StartTime string `json:"start_time,omitempty"`

	// EndTime is the last timestamp observed, in source format.
	EndTime string `json:"end_time,omitempty"`

	// Compacted reports that the assistant replaced earlier turns with a
	// summary during the session.
	Compacted bool `json:"compacted,omitempty"`

	// SkippedLines counts native records that could not be parsed.
	SkippedLines int `json:"skipped_lines,omitempty"`

	// Messages are in chronological order.
	Messages []Message `json:"messages"`
}

// Len returns the number of messages in the session.
func (s *Session) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Messages)
}
