package loopdetect

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/fyrsmithlabs/continuum/internal/conversation"
)

// digest is the equality witness used for repetition counting.
type digest = [sha256.Size]byte

// Detector analyzes message batches for loop patterns.
type Detector struct {
	cfg Config
}

// New creates a detector with the given thresholds.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// NewDefault creates a detector with DefaultConfig.
func NewDefault() *Detector {
	return &Detector{cfg: DefaultConfig()}
}

// Config returns the detector thresholds.
func (d *Detector) Config() Config {
	return d.cfg
}

// Analyze runs the volume, content and pattern passes and returns all
// findings. It never modifies messages.
func (d *Detector) Analyze(messages []conversation.Message) []Finding {
	var findings []Finding

	if f, ok := d.checkVolume(len(messages)); ok {
		findings = append(findings, f)
	}
	if f, ok := d.detectContentRepetition(messages); ok {
		findings = append(findings, f)
	}
	if f, ok := d.detectPatternLoops(messages); ok {
		findings = append(findings, f)
	}

	return findings
}

// checkVolume flags batches over the absolute message thresholds.
func (d *Detector) checkVolume(count int) (Finding, bool) {
	switch {
	case count >= d.cfg.CriticalMessageCount:
		return Finding{
			Severity: SeverityCritical,
			Kind:     KindVolume,
			Message: fmt.Sprintf("Extremely high message count: %d messages (threshold: %d)",
				count, d.cfg.CriticalMessageCount),
		}, true
	case count >= d.cfg.WarningMessageCount:
		return Finding{
			Severity: SeverityWarning,
			Kind:     KindVolume,
			Message: fmt.Sprintf("High message count: %d messages (threshold: %d)",
				count, d.cfg.WarningMessageCount),
		}, true
	}
	return Finding{}, false
}

// detectContentRepetition flags message bodies that recur regardless of who
// sent them.
func (d *Detector) detectContentRepetition(messages []conversation.Message) (Finding, bool) {
	counts := make(map[digest]int, len(messages))
	maxCount := 0
	for _, msg := range messages {
		h := contentDigest(msg.Content)
		counts[h]++
		if counts[h] > maxCount {
			maxCount = counts[h]
		}
	}

	switch {
	case maxCount >= d.cfg.MinRepetitions*2:
		return Finding{
			Severity: SeverityCritical,
			Kind:     KindContent,
			Message: fmt.Sprintf("Identical content repeated %d times (threshold: %d)",
				maxCount, d.cfg.MinRepetitions*2),
			RepetitionCount: maxCount,
			PatternSize:     1,
		}, true
	case maxCount >= d.cfg.MinRepetitions:
		return Finding{
			Severity: SeverityWarning,
			Kind:     KindContent,
			Message: fmt.Sprintf("Content repeated %d times (threshold: %d)",
				maxCount, d.cfg.MinRepetitions),
			RepetitionCount: maxCount,
			PatternSize:     1,
		}, true
	}
	return Finding{}, false
}

// detectPatternLoops scans window sizes from 2 upward and reports the first
// size whose most frequent window reaches the repetition threshold.
func (d *Detector) detectPatternLoops(messages []conversation.Message) (Finding, bool) {
	upper := min(d.cfg.MaxPatternSize, len(messages)/4)
	if upper < 2 {
		return Finding{}, false
	}

	// Per-message digests are computed once and shared by every window size.
	arena := make([]digest, len(messages))
	for i, msg := range messages {
		arena[i] = messageDigest(msg)
	}

	for size := 2; size <= upper; size++ {
		if f, ok := d.findRepeatingPattern(arena, size); ok {
			return f, true
		}
	}
	return Finding{}, false
}

// findRepeatingPattern counts every window of the given size.
func (d *Detector) findRepeatingPattern(arena []digest, size int) (Finding, bool) {
	if len(arena) < size*d.cfg.MinRepetitions {
		return Finding{}, false
	}

	counts := make(map[digest]int, len(arena)-size+1)
	maxCount := 0
	for start := 0; start+size <= len(arena); start++ {
		h := windowDigest(arena[start : start+size])
		counts[h]++
		if counts[h] > maxCount {
			maxCount = counts[h]
		}
	}

	var severity Severity
	var threshold int
	switch {
	case maxCount >= d.cfg.MinRepetitions*2:
		severity, threshold = SeverityCritical, d.cfg.MinRepetitions*2
	case maxCount >= d.cfg.MinRepetitions:
		severity, threshold = SeverityWarning, d.cfg.MinRepetitions
	default:
		return Finding{}, false
	}

	return Finding{
		Severity: severity,
		Kind:     KindPattern,
		Message: fmt.Sprintf("Message pattern of %d messages repeated %d times (threshold: %d)",
			size, maxCount, threshold),
		RepetitionCount: maxCount,
		PatternSize:     size,
	}, true
}

// contentDigest hashes content with whitespace runs collapsed, so reformatting
// does not hide a repeat.
func contentDigest(content string) digest {
	return sha256.Sum256([]byte(strings.Join(strings.Fields(content), " ")))
}

// messageDigest hashes a (role, content) pair. Lengths are written first so
// that no two distinct pairs share an encoding.
func messageDigest(msg conversation.Message) digest {
	h := sha256.New()
	writeField(h, msg.Role)
	writeField(h, msg.Content)
	var out digest
	h.Sum(out[:0])
	return out
}

// windowDigest combines consecutive per-message digests in order.
func windowDigest(window []digest) digest {
	h := sha256.New()
	for i := range window {
		h.Write(window[i][:])
	}
	var out digest
	h.Sum(out[:0])
	return out
}

func writeField(h io.Writer, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
