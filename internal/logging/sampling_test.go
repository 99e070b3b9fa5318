package logging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/continuum/internal/config"
)

func sampledLogger(level zapcore.Level, cfg SamplingConfig) (*Logger, *observer.ObservedLogs) {
	core, observed := observer.New(level)
	return &Logger{zap: zap.New(newSampledCore(core, cfg)), config: NewDefaultConfig()}, observed
}

func TestNewSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	assert.Equal(t, core, newSampledCore(core, SamplingConfig{Enabled: false}))
}

func TestNewSampledCore_ErrorsNeverSampled(t *testing.T) {
	logger, observed := sampledLogger(zapcore.InfoLevel, SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels: map[zapcore.Level]LevelSamplingConfig{
			zapcore.InfoLevel: {Initial: 1, Thereafter: 0},
		},
	})

	for i := 0; i < 100; i++ {
		logger.Error(context.Background(), "import failed")
	}

	assert.Len(t, observed.FilterMessage("import failed").All(), 100)
}

func TestNewSampledCore_PerLevelRates(t *testing.T) {
	logger, observed := sampledLogger(TraceLevel, SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels: map[zapcore.Level]LevelSamplingConfig{
			TraceLevel:        {Initial: 2, Thereafter: 0},
			zapcore.InfoLevel: {Initial: 5, Thereafter: 0},
		},
	})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		logger.Trace(ctx, "classified")
		logger.Debug(ctx, "stat")
		logger.Info(ctx, "progress")
		logger.Warn(ctx, "finding")
	}

	assert.Len(t, observed.FilterMessage("classified").All(), 2)
	assert.Len(t, observed.FilterMessage("progress").All(), 5)
	// No entry for debug or warn: not sampled
	assert.Len(t, observed.FilterMessage("stat").All(), 20)
	assert.Len(t, observed.FilterMessage("finding").All(), 20)
}

func TestNewSampledCore_RespectsCoreLevel(t *testing.T) {
	logger, observed := sampledLogger(zapcore.WarnLevel, SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels:  DefaultLevelSamplingConfig(),
	})

	logger.Info(context.Background(), "hidden")
	logger.Warn(context.Background(), "shown")

	assert.Empty(t, observed.FilterMessage("hidden").All())
	assert.Len(t, observed.FilterMessage("shown").All(), 1)
}

func TestLevelRangeCore_With(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	ranged := &levelRangeCore{Core: core, min: zapcore.WarnLevel, max: zapcore.WarnLevel}

	child := ranged.With([]zapcore.Field{zap.String("assistant", "codex")})
	logger := zap.New(child)

	logger.Info("ignored")
	logger.Warn("kept")
	logger.Error("ignored too")

	logs := observed.All()
	assert.Len(t, logs, 1)
	assert.Equal(t, "kept", logs[0].Message)
	assert.Equal(t, "codex", logs[0].ContextMap()["assistant"])
}

func TestNewSampledCore_DefaultTraceRate(t *testing.T) {
	logger, observed := sampledLogger(TraceLevel, NewDefaultConfig().Sampling)
	ctx := context.Background()

	for i := 0; i < 5000; i++ {
		logger.Trace(ctx, "message dropped")
		logger.Debug(ctx, "rule matched")
	}

	// 1000 initial, then every 100th of the remaining 4000.
	assert.Len(t, observed.FilterMessage("message dropped").All(), 1040)
	assert.Len(t, observed.FilterMessage("rule matched").All(), 1040)
}

func TestTickSampler(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	sampler := newTickSampler(core, time.Minute, 2, 3)
	base := time.Date(2025, 11, 9, 14, 0, 0, 0, time.UTC)

	write := func(msg string, at time.Time) {
		ent := zapcore.Entry{Level: TraceLevel, Message: msg, Time: at}
		if ce := sampler.Check(ent, nil); ce != nil {
			ce.Write()
		}
	}

	for i := 0; i < 8; i++ {
		write("message dropped", base)
	}
	// Kept: 1, 2, then 5 and 8.
	assert.Len(t, observed.FilterMessage("message dropped").All(), 4)

	// Other messages are counted separately.
	write("session loaded", base)
	assert.Len(t, observed.FilterMessage("session loaded").All(), 1)

	// A new tick starts over.
	write("message dropped", base.Add(time.Minute))
	assert.Len(t, observed.FilterMessage("message dropped").All(), 5)
}

func TestTickSampler_WithSharesCounts(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	logger := zap.New(newTickSampler(core, time.Minute, 1, 0))
	child := logger.With(zap.String("assistant", "codex"))

	logger.Log(TraceLevel, "message dropped")
	child.Log(TraceLevel, "message dropped")
	child.Log(TraceLevel, "message dropped")

	logs := observed.FilterMessage("message dropped").All()
	assert.Len(t, logs, 1)
	assert.Empty(t, logs[0].ContextMap())
}
