package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("WARN"))
	assert.Equal(t, LogLevelDebug, ParseLogLevel(" debug "))
	assert.Equal(t, LogLevelTrace, ParseLogLevel("TRACE"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
}

func TestLoggerGating(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLoggerWithZap(LogLevelInfo, zap.New(core))

	l.Info("kept %d", 1)
	l.Debug("dropped %d", 2)
	l.Trace("dropped %d", 3)
	l.Error("kept %s", "too")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "kept 1", entries[0].Message)
		assert.Equal(t, "kept too", entries[1].Message)
	}

	l.SetLevel(LogLevelTrace)
	l.Trace("step %s", "x")
	assert.Equal(t, "[TRACE] step x", logs.All()[2].Message)
}
