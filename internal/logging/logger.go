// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}

// WithIngestLog tees base into a plain-text log file at path. Every line in the
// file reads "<ISO timestamp> <LEVEL> <context> <message> <fields>", where
// context is the logger name. The returned close func flushes and closes the file.
func WithIngestLog(base *zap.Logger, path, context string) (*zap.Logger, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) // #nosec G304 -- path comes from the path manager.
	if err != nil {
		return nil, nil, fmt.Errorf("open ingest log %s: %w", path, err)
	}
	fileCore := zapcore.NewCore(zapcore.NewConsoleEncoder(PlainEncoderConfig()), zapcore.AddSync(f), zapcore.InfoLevel)
	if base == nil {
		base = zap.NewNop()
	}
	logger := base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})).Named(context)
	closer := func() error {
		_ = logger.Sync() //nolint:errcheck // best-effort flush
		return f.Close()
	}
	return logger, closer, nil
}

// PlainEncoderConfig is the encoder used for on-disk ingest logs.
func PlainEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		NameKey:          "context",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeLevel:      levelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	}
}

func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch {
	case l >= zapcore.ErrorLevel:
		enc.AppendString("ERROR")
	case l == zapcore.WarnLevel:
		enc.AppendString("WARNING")
	case l == zapcore.InfoLevel:
		enc.AppendString("INFO")
	default:
		enc.AppendString("DEBUG")
	}
}
