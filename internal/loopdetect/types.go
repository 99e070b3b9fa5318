package loopdetect

import (
	"errors"
	"fmt"
)

// Severity grades a finding.
type Severity int

const (
	// SeverityWarning marks a suspicious but inconclusive pattern.
	SeverityWarning Severity = iota
	// SeverityCritical marks a clear loop.
	SeverityCritical
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Kind identifies which pass produced a finding.
type Kind string

const (
	// KindVolume flags a batch with too many messages.
	KindVolume Kind = "volume"
	// KindContent flags one message body repeated many times.
	KindContent Kind = "content"
	// KindPattern flags a repeating sequence of two or more messages.
	KindPattern Kind = "pattern"
)

// Finding is one graded observation about a batch.
type Finding struct {
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`

	// Message explains the finding for operators.
	Message string `json:"message"`

	// RepetitionCount is how often the repeating unit occurred (0 for volume).
	RepetitionCount int `json:"repetition_count"`

	// PatternSize is the length of the repeating unit in messages:
	// 0 for volume, 1 for identical content, N for an N-message window.
	PatternSize int `json:"pattern_size"`
}

// Config holds the detector thresholds.
type Config struct {
	// WarningMessageCount raises a volume warning at this many messages.
	WarningMessageCount int `json:"warning_message_count"`

	// CriticalMessageCount raises a critical volume finding at this many messages.
	CriticalMessageCount int `json:"critical_message_count"`

	// MinRepetitions is the repetition count that makes a warning; twice
	// this is critical.
	MinRepetitions int `json:"min_repetitions"`

	// MaxPatternSize is the largest window tested by the pattern pass.
	MaxPatternSize int `json:"max_pattern_size"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		WarningMessageCount:  100,
		CriticalMessageCount: 200,
		MinRepetitions:       10,
		MaxPatternSize:       10,
	}
}

// ErrInvalidConfig is returned by New for unusable thresholds.
var ErrInvalidConfig = errors.New("invalid loop detector config")

// Validate checks thresholds for consistency.
func (c Config) Validate() error {
	if c.WarningMessageCount <= 0 {
		return fmt.Errorf("%w: warning message count must be > 0, got %d", ErrInvalidConfig, c.WarningMessageCount)
	}
	if c.CriticalMessageCount < c.WarningMessageCount {
		return fmt.Errorf("%w: critical message count %d below warning count %d",
			ErrInvalidConfig, c.CriticalMessageCount, c.WarningMessageCount)
	}
	if c.MinRepetitions < 2 {
		return fmt.Errorf("%w: min repetitions must be >= 2, got %d", ErrInvalidConfig, c.MinRepetitions)
	}
	if c.MaxPatternSize < 2 {
		return fmt.Errorf("%w: max pattern size must be >= 2, got %d", ErrInvalidConfig, c.MaxPatternSize)
	}
	return nil
}
