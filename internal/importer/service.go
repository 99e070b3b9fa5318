// Package importer runs the import pipeline: load a session through an
// adapter, check it for loops, filter noise and archive what is left.
package importer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuum/internal/adapters"
	"github.com/fyrsmithlabs/continuum/internal/archive"
	"github.com/fyrsmithlabs/continuum/internal/compression"
	"github.com/fyrsmithlabs/continuum/internal/config"
	"github.com/fyrsmithlabs/continuum/internal/conversation"
	"github.com/fyrsmithlabs/continuum/internal/logging"
	"github.com/fyrsmithlabs/continuum/internal/loopdetect"
)

// Options selects the session to import.
type Options struct {
	// Assistant is the adapter name (claude-code, codex, goose).
	Assistant string

	// Session is an adapter-specific ref. Empty selects the latest session.
	Session string

	// Live marks a session the assistant is still writing. It is archived
	// as active until MarkClosed.
	Live bool
}

// Result describes one import or analysis.
type Result struct {
	SessionID  string `json:"session_id"`
	Assistant  string `json:"assistant"`
	Source     string `json:"source,omitempty"`
	StartTime  string `json:"start_time,omitempty"`
	EndTime    string `json:"end_time,omitempty"`
	ArchiveDir string `json:"archive_dir,omitempty"`

	// Status is the archived session status. Empty when nothing was written.
	Status archive.Status `json:"status,omitempty"`

	// Compacted is set when the assistant summarized earlier turns in place.
	Compacted bool `json:"compacted,omitempty"`

	compression.Stats

	SkippedLines int                  `json:"skipped_lines,omitempty"`
	Findings     []loopdetect.Finding `json:"findings"`

	// Skipped is set when nothing survived compression and nothing was written.
	Skipped bool `json:"skipped"`

	// DryRun is set for Analyze results.
	DryRun bool `json:"dry_run,omitempty"`

	ref archive.SessionRef
}

// finalStatus is the status of the session once nobody writes to it.
func (r *Result) finalStatus() archive.Status {
	if r.Compacted {
		return archive.StatusCompacted
	}
	return archive.StatusClosed
}

// Config configures the service. A zero Detector selects the default
// thresholds.
type Config struct {
	Adapters config.AdaptersConfig
	Detector loopdetect.Config
}

// Service imports sessions. It is safe for concurrent use.
type Service struct {
	adapters   config.AdaptersConfig
	compressor *compression.MessageCompressor
	detector   *loopdetect.Detector
	writer     *archive.Writer
	metrics    *Metrics
	logger     *logging.Logger
}

// NewService creates an import service. metrics and logger may be nil.
func NewService(cfg Config, writer *archive.Writer, metrics *Metrics, logger *logging.Logger) (*Service, error) {
	if writer == nil {
		return nil, errors.New("archive writer is required")
	}
	if cfg.Detector == (loopdetect.Config{}) {
		cfg.Detector = loopdetect.DefaultConfig()
	}
	detector, err := loopdetect.New(cfg.Detector)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		adapters:   cfg.Adapters,
		compressor: compression.NewMessageCompressor(),
		detector:   detector,
		writer:     writer,
		metrics:    metrics,
		logger:     logger.Named("importer"),
	}, nil
}

// Adapter returns the adapter for an assistant name.
func (s *Service) Adapter(name string) (adapters.Adapter, error) {
	return adapters.New(name, s.adapters)
}

// Import loads, analyzes, compresses and archives a session. Loop findings
// are reported in the result but never block archiving.
func (s *Service) Import(ctx context.Context, opts Options) (*Result, error) {
	res, kept, err := s.run(ctx, opts)
	if err != nil {
		s.metrics.recordError(assistantLabel(opts.Assistant))
		return nil, err
	}
	ctx = logging.WithAssistant(logging.WithSessionID(ctx, res.SessionID), res.Assistant)

	if len(kept) == 0 {
		res.Skipped = true
		s.logger.Warn(ctx, "no messages left after compression, nothing written",
			zap.Int("original_messages", res.OriginalMessages))
		s.metrics.record(res)
		return res, nil
	}

	meta := archive.SessionMeta{
		ID:           res.SessionID,
		Assistant:    res.Assistant,
		StartTime:    res.StartTime,
		EndTime:      res.EndTime,
		Status:       res.finalStatus(),
		MessageCount: len(kept),
	}
	if opts.Live {
		meta.Status = archive.StatusActive
	}
	dir, err := s.writer.WriteSession(meta)
	if err != nil {
		s.metrics.recordError(res.Assistant)
		return nil, fmt.Errorf("writing session: %w", err)
	}
	if err := s.writer.WriteMessages(ctx, meta.Ref(), kept, res.StartTime); err != nil {
		s.metrics.recordError(res.Assistant)
		return nil, fmt.Errorf("writing messages: %w", err)
	}
	res.ArchiveDir = dir
	res.Status = meta.Status
	res.ref = meta.Ref()

	s.logger.Info(ctx, "session imported",
		zap.String("dir", dir),
		zap.String("status", string(res.Status)),
		zap.Int("kept", res.KeptMessages),
		zap.Int("dropped", res.DroppedMessages),
		zap.Float64("ratio_percent", res.RatioPercent),
		zap.Int("findings", len(res.Findings)))
	s.metrics.record(res)
	return res, nil
}

// MarkClosed records the final status of a session imported with
// Options.Live. Results that wrote nothing are ignored.
func (s *Service) MarkClosed(ctx context.Context, res *Result) error {
	if res == nil || res.ref.ID == "" || res.Status != archive.StatusActive {
		return nil
	}
	status := res.finalStatus()
	if err := s.writer.UpdateSessionMetadata(res.ref, map[string]any{"status": status}); err != nil {
		return fmt.Errorf("closing session %s: %w", res.SessionID, err)
	}
	res.Status = status
	ctx = logging.WithAssistant(logging.WithSessionID(ctx, res.SessionID), res.Assistant)
	s.logger.Info(ctx, "session closed", zap.String("status", string(status)))
	return nil
}

// Analyze runs the same pipeline as Import without writing anything.
func (s *Service) Analyze(ctx context.Context, opts Options) (*Result, error) {
	res, _, err := s.run(ctx, opts)
	if err != nil {
		return nil, err
	}
	res.DryRun = true
	return res, nil
}

// run loads the session and computes findings and the compressed batch.
func (s *Service) run(ctx context.Context, opts Options) (*Result, []conversation.Message, error) {
	adapter, err := s.Adapter(opts.Assistant)
	if err != nil {
		return nil, nil, err
	}
	ctx = logging.WithAssistant(ctx, adapter.Name())

	ref := opts.Session
	if ref == "" {
		ref, err = adapter.LatestSession(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("finding latest %s session: %w", adapter.Name(), err)
		}
	}

	start := time.Now()
	session, err := adapter.Load(ctx, ref)
	if err != nil {
		return nil, nil, fmt.Errorf("loading %s session %q: %w", adapter.Name(), ref, err)
	}
	ctx = logging.WithSessionID(ctx, session.ID)
	s.logger.Debug(ctx, "session loaded",
		zap.String("source", session.Source),
		zap.Int("messages", session.Len()),
		zap.Int("skipped_lines", session.SkippedLines),
		zap.Duration("took", time.Since(start)))
	if session.SkippedLines > 0 {
		s.logger.Warn(ctx, "skipped malformed records", zap.Int("count", session.SkippedLines))
	}

	findings := s.detector.Analyze(session.Messages)
	for _, f := range findings {
		s.logger.Warn(ctx, "loop detected",
			zap.Stringer("severity", f.Severity),
			zap.String("kind", string(f.Kind)),
			zap.Int("repetitions", f.RepetitionCount),
			zap.Int("pattern_size", f.PatternSize))
	}

	kept := s.compressor.CompressBatch(session.Messages)
	s.traceDropped(ctx, session.Messages)

	return &Result{
		SessionID:    session.ID,
		Assistant:    session.Assistant,
		Source:       session.Source,
		StartTime:    session.StartTime,
		EndTime:      session.EndTime,
		Stats:        s.compressor.Summarize(session.Messages, kept),
		SkippedLines: session.SkippedLines,
		Findings:     nonNil(findings),
		Compacted:    session.Compacted,
	}, kept, nil
}

// traceDropped logs every dropped message with the rule that caused it.
func (s *Service) traceDropped(ctx context.Context, messages []conversation.Message) {
	if !s.logger.Enabled(logging.TraceLevel) {
		return
	}
	filter := s.compressor.Filter()
	for i, msg := range messages {
		if !filter.IsNoise(msg.Content) {
			continue
		}
		rule := filter.MatchedRule(msg.Content)
		if rule == "" {
			rule = "too_short"
		}
		s.logger.Trace(ctx, "message dropped",
			zap.Int("index", i),
			zap.String("role", msg.Role),
			zap.String("rule", rule),
			zap.String("excerpt", excerpt(msg.Content)))
	}
}

const maxExcerptRunes = 120

// excerpt collapses whitespace and shortens s for logging. It cuts at a word
// boundary so a pasted credential is logged whole, where redaction can match
// it, or not at all.
func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxExcerptRunes {
		return s
	}
	cut := string([]rune(s)[:maxExcerptRunes])
	i := strings.LastIndexByte(cut, ' ')
	if i < 0 {
		i = 0
	}
	return cut[:i] + "..."
}

// assistantLabel bounds the assistant metric label to known adapter names.
func assistantLabel(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if slices.Contains(adapters.Names(), name) {
		return name
	}
	return "unknown"
}

func nonNil(findings []loopdetect.Finding) []loopdetect.Finding {
	if findings == nil {
		return []loopdetect.Finding{}
	}
	return findings
}
