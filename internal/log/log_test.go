package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHelpersWriteToGlobalLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Init("debug")
	prev := logger
	logger = zap.New(core)
	t.Cleanup(func() { logger = prev })

	Debug("listed voices", "count", 3)
	Info("starting jarvis", "addr", ":8080")
	Error("server stopped", "error", "boom")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, int64(3), entries[0].ContextMap()["count"])
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, ":8080", entries[1].ContextMap()["addr"])
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "server stopped", entries[2].Message)
}

func TestBuildFallsBackToInfo(t *testing.T) {
	l := build("nonsense")
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}
