// Package corelog provides the structured logger used across the ECS
// runtime. It is a thin constructor around go.uber.org/zap, mirroring the
// way the rest of the pack threads a *zap.Logger through constructors
// rather than reaching for a package-level global.
package corelog

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	defaultOnce   sync.Once
	defaultLogger *zap.Logger
)

// Level mirrors the subset of zap levels the runtime cares about, decoupling
// internal/runtimeconfig from a direct zapcore dependency.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a production-encoder zap logger at the given level, writing to
// stderr. Panics if zap's own config validation fails, which only happens on
// a malformed encoder config and indicates a programming error.
func New(level Level) *zap.Logger {
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level.zapLevel()),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

// Default returns a process-wide no-frills logger at info level, built once,
// for callers that construct a World without supplying their own logger.
func Default() *zap.Logger {
	defaultOnce.Do(func() {
		defaultLogger = New(LevelInfo)
	})
	return defaultLogger
}
