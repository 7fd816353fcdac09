package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(context.Background()))
	assert.NoError(t, lp.ForceFlush(context.Background()))
}

func TestLoggerProvider_ZapCoreDisabledIsNop(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	core := lp.ZapCore("storeops-backend", zapcore.InfoLevel)
	assert.False(t, core.Enabled(zapcore.ErrorLevel))
}

func TestLoggerProvider_TeeIntoDisabledReturnsBase(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	base := zap.NewNop()
	assert.Same(t, base, lp.TeeInto(base, zapcore.InfoLevel))
}

func TestMinLevelCore_FiltersBelowThreshold(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)
	core := &minLevelCore{Core: observed, minLevel: zapcore.WarnLevel}
	logger := zap.New(core)

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	logger.Error("kept as well")

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "kept", entries[0].Message)
	assert.Equal(t, "kept as well", entries[1].Message)
}

func TestMinLevelCore_WithKeepsThreshold(t *testing.T) {
	observed, logs := observer.New(zapcore.DebugLevel)
	core := &minLevelCore{Core: observed, minLevel: zapcore.WarnLevel}

	child := core.With([]zapcore.Field{zap.String("tenant", "t-1")})
	logger := zap.New(child)

	logger.Info("dropped")
	logger.Warn("kept")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "kept", entry.Message)
	require.Len(t, entry.Context, 1)
	assert.Equal(t, "tenant", entry.Context[0].Key)
}
