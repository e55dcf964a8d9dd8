package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pillbox/core"
)

// NewLogger builds the daemon logger. The returned level can be changed at
// runtime, for example after a config reload.
func NewLogger(level string) (*zap.SugaredLogger, zap.AtomicLevel, error) {
	atom := zap.NewAtomicLevel()
	if err := SetLevel(atom, level); err != nil {
		return nil, atom, err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = atom
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")

	logger, err := cfg.Build()
	if err != nil {
		return nil, atom, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), atom, nil
}

// SetLevel parses level and applies it to atom. Debug level also enables the
// firmware debug stream.
func SetLevel(atom zap.AtomicLevel, level string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	atom.SetLevel(l)
	core.SetDebugEnabled(l == zapcore.DebugLevel)
	return nil
}

// RouteDebug sends core debug messages to logger at debug level
func RouteDebug(logger *zap.SugaredLogger) {
	named := logger.Named("core")
	core.SetDebugWriter(func(msg string) {
		named.Debug(msg)
	})
}
