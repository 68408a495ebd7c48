package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestZapWrapper_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"taskType": "billing.usage.consume"})

	log.Info("usage consumed", map[string]interface{}{
		"userId": "u-1",
		"cause":  errors.New("boom"),
	})
	log.WithError(errors.New("db down")).Error("reset failed", nil)

	entries := logs.All()
	assert.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "billing.usage.consume", first["taskType"])
	assert.Equal(t, "u-1", first["userId"])
	assert.Equal(t, "boom", first["cause"])

	second := entries[1].ContextMap()
	assert.Equal(t, "db down", second["error"])
}

func TestNew_BadOutputFallsBack(t *testing.T) {
	l := New("info", "json", "/nonexistent/dir/out.log")
	assert.NotNil(t, l)
}
