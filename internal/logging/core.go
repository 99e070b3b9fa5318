package logging

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// newCore builds the encoder chain (format, redaction) over ws and wraps it
// with sampling.
func newCore(cfg *Config, ws zapcore.WriteSyncer) (zapcore.Core, error) {
	encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
	if err != nil {
		return nil, fmt.Errorf("failed to create redacting encoder: %w", err)
	}

	core := zapcore.NewCore(encoder, ws, cfg.Level)
	return newSampledCore(core, cfg.Sampling), nil
}
