// Package logging provides structured logging for continuum.
//
// # Overview
//
// Logging wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Output to stderr by default, so stdout carries only command results
//   - Automatic context field injection (assistant, session.id)
//   - Secret redaction by field name and value pattern
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg, err := logging.FromConfig(appCfg.Logging)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithAssistant(ctx, "codex")
//	ctx = logging.WithSessionID(ctx, sessionID)
//	logger.Info(ctx, "session imported", zap.Int("kept", kept))
//
// # Redaction
//
// Transcript excerpts logged at Trace level pass through the redacting
// encoder. Fields named like credentials are replaced outright and any value
// matching a redaction pattern has the match masked.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	assert.Equal(t, []string{"value"}, tl.FieldValues(t, "test message", "key"))
//	tl.AssertNoSecrets(t)
package logging
