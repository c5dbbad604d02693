package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	appctx "metaschema/internal/core/context"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &Logger{zap.New(core).Sugar()}, logs
}

func TestWithContext(t *testing.T) {
	l, logs := observed()

	l.WithContext(context.Background()).Info("plain")
	ctx := appctx.WithTrace(context.Background(), &appctx.TraceContext{TraceID: "t-1", RequestID: "r-1"})
	l.WithContext(ctx).Info("request")
	l.WithContext(appctx.StartRun(context.Background(), "reload")).Info("run")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Empty(t, entries[0].ContextMap())
	assert.Equal(t, map[string]any{"trace_id": "t-1", "request_id": "r-1"}, entries[1].ContextMap())
	assert.Equal(t, "reload", entries[2].ContextMap()["operation"])
	assert.NotContains(t, entries[2].ContextMap(), "request_id")
}

func TestFromContext(t *testing.T) {
	l, logs := observed()
	ctx := WithLogger(context.Background(), l.WithComponent("store"))

	Info(ctx, "hello", "n", 1)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "store", logs.All()[0].ContextMap()["component"])
	assert.EqualValues(t, 1, logs.All()[0].ContextMap()["n"])
}

func TestNew_FallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "chatty", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.False(t, l.Desugar().Core().Enabled(zap.DebugLevel))
	assert.True(t, l.Desugar().Core().Enabled(zap.InfoLevel))
}
