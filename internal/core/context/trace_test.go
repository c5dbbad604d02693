package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRun(t *testing.T) {
	ctx := StartRun(context.Background(), "reload")
	run := GetTrace(ctx)
	require.NotNil(t, run)
	assert.Equal(t, "reload", run.Operation)
	assert.Empty(t, run.RequestID)
	assert.Len(t, run.SpanID, 16)

	req := WithTrace(context.Background(), &TraceContext{TraceID: "t-1", SpanID: "s-1", RequestID: "r-1"})
	child := GetTrace(StartRun(req, "ddl"))
	assert.Equal(t, "t-1", child.TraceID)
	assert.Equal(t, "r-1", child.RequestID)
	assert.NotEqual(t, "s-1", child.SpanID)
	assert.Equal(t, "s-1", GetTrace(req).SpanID, "parent is not modified")

	assert.Nil(t, GetTrace(context.Background()))
}
