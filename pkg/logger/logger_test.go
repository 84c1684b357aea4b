package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/d60-Lab/cafe-pos/config"
)

func TestSetRoutesHelpersToLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(zap.NewNop()) })

	Info("session opened", zap.Int64("session_id", 1))
	Warn("retrying", zap.Int("attempt", 2))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "session opened", logs.All()[0].Message)
	assert.Equal(t, int64(1), logs.All()[0].ContextMap()["session_id"])
}

func TestInitFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() { Set(zap.NewNop()) })
	require.NoError(t, Init(config.LogConfig{Level: "nonsense", Format: "json"}))
	assert.True(t, L().Core().Enabled(zap.InfoLevel))
	assert.False(t, L().Core().Enabled(zap.DebugLevel))
}
