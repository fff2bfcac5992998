// Package log provides structured logging for go-jarvis.
// It wraps zap with sensible defaults and installs the result as zap's
// global logger so components can default to zap.L().
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

// Init initializes the global logger with the specified level.
// Valid levels: "debug", "info", "warn", "error"
func Init(level string) {
	once.Do(func() {
		logger = build(level)
		zap.ReplaceGlobals(logger)
	})
}

// build creates the zap logger. JSON in production, console otherwise.
func build(level string) *zap.Logger {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if os.Getenv("GO_ENV") == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}

	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// L returns the global logger instance.
func L() *zap.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Debug logs at debug level with alternating key/value pairs.
func Debug(msg string, keysAndValues ...any) {
	L().Sugar().Debugw(msg, keysAndValues...)
}

// Info logs at info level with alternating key/value pairs.
func Info(msg string, keysAndValues ...any) {
	L().Sugar().Infow(msg, keysAndValues...)
}

// Error logs at error level with alternating key/value pairs.
func Error(msg string, keysAndValues ...any) {
	L().Sugar().Errorw(msg, keysAndValues...)
}

// Sync flushes buffered log entries.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
