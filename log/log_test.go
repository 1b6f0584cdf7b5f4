package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLevel(t *testing.T) {
	defer level.SetLevel(zap.InfoLevel)
	assert.NoError(t, SetLevel("debug"))
	assert.Equal(t, zapcore.DebugLevel, level.Level())
	assert.Error(t, SetLevel("verbose"))
	assert.Equal(t, zapcore.DebugLevel, level.Level())
}

func TestSetLogger(t *testing.T) {
	old := logger
	defer func() { logger = old }()
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))

	Debug("hidden")
	Info("GdalToolbox:shp merged", zap.Int("cnt", 2))
	Error("GdalToolbox:open shp failed")
	assert.Equal(t, 2, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "GdalToolbox:shp merged", entry.Message)
	assert.Equal(t, int64(2), entry.ContextMap()["cnt"])
}
