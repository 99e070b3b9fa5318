package logging

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// newSampledCore wraps core with per-level sampling. Each level below Error
// gets its own sampler from cfg.Levels; levels without an entry pass through.
// Error and above are never sampled. zap's sampler only counts Debug and
// above, so TraceLevel goes through tickSampler instead.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	cores := []zapcore.Core{
		&levelRangeCore{Core: core, min: zapcore.ErrorLevel, max: zapcore.FatalLevel},
	}

	for _, lvl := range []zapcore.Level{TraceLevel, zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel} {
		exact := &levelRangeCore{Core: core, min: lvl, max: lvl}
		rate, ok := cfg.Levels[lvl]
		if !ok {
			cores = append(cores, exact)
			continue
		}
		if lvl < zapcore.DebugLevel {
			cores = append(cores, newTickSampler(exact, cfg.Tick.Duration(), rate.Initial, rate.Thereafter))
			continue
		}
		cores = append(cores, zapcore.NewSamplerWithOptions(exact, cfg.Tick.Duration(), rate.Initial, rate.Thereafter))
	}

	return zapcore.NewTee(cores...)
}

// levelRangeCore only accepts entries with min <= level <= max.
type levelRangeCore struct {
	zapcore.Core
	min, max zapcore.Level
}

func (c *levelRangeCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.min && lvl <= c.max && c.Core.Enabled(lvl)
}

func (c *levelRangeCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With creates a child core that keeps the level range.
func (c *levelRangeCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelRangeCore{
		Core: c.Core.With(fields),
		min:  c.min,
		max:  c.max,
	}
}

// tickSampler keeps the first entries per message in each tick, then every
// thereafter-th. thereafter == 0 drops everything past first. Counts are
// shared by child cores created with With.
type tickSampler struct {
	zapcore.Core
	tick              time.Duration
	first, thereafter uint64
	counts            *tickCounts
}

type tickCounts struct {
	mu      sync.Mutex
	resetAt time.Time
	byMsg   map[string]uint64
}

func newTickSampler(core zapcore.Core, tick time.Duration, first, thereafter int) *tickSampler {
	return &tickSampler{
		Core:       core,
		tick:       tick,
		first:      uint64(max(first, 0)),
		thereafter: uint64(max(thereafter, 0)),
		counts:     &tickCounts{byMsg: make(map[string]uint64)},
	}
}

// inc returns the count of msg in the tick containing now.
func (c *tickCounts) inc(msg string, now time.Time, tick time.Duration) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !now.Before(c.resetAt) {
		clear(c.byMsg)
		c.resetAt = now.Add(tick)
	}
	c.byMsg[msg]++
	return c.byMsg[msg]
}

func (s *tickSampler) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !s.Enabled(e.Level) {
		return ce
	}
	now := e.Time
	if now.IsZero() {
		now = time.Now()
	}
	n := s.counts.inc(e.Message, now, s.tick)
	if n > s.first && (s.thereafter == 0 || (n-s.first)%s.thereafter != 0) {
		return ce
	}
	return s.Core.Check(e, ce)
}

func (s *tickSampler) With(fields []zapcore.Field) zapcore.Core {
	return &tickSampler{
		Core:       s.Core.With(fields),
		tick:       s.tick,
		first:      s.first,
		thereafter: s.thereafter,
		counts:     s.counts,
	}
}
