// Package logging bootstraps the process-wide zap logger.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Bootstrap builds a *zap.Logger at the given level ("DEBUG", "INFO",
// "WARN", "ERROR"; case-insensitive, defaults to INFO on an unknown value).
func Bootstrap(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Noop returns a logger that discards everything, used by tests and any
// code path invoked before Bootstrap has run.
func Noop() *zap.Logger {
	return zap.NewNop()
}
