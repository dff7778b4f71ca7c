package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/paper-supply/config"
	"go.uber.org/zap/zapcore"
)

func TestNew_Level(t *testing.T) {
	l := New(config.LoggerConfig{Level: "warn", Encoding: "json"}, false)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestNew_BadLevelFallsBackToInfo(t *testing.T) {
	l := New(config.LoggerConfig{Level: "chatty"}, true)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}
