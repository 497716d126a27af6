package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_ContextFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewWithZap(zap.New(core))

	ctx := WithValue(context.Background(), KeyTraceID, "req-1")
	ctx = WithValue(ctx, KeyWorkerID, 3)
	ctx = WithValue(ctx, KeyOrderNumber, "LM12345678")

	l.Infof(ctx, "[Resolver] resolved %s", "LM12345678")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "[Resolver] resolved LM12345678", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "req-1", fields["trace_id"])
	assert.Equal(t, int64(3), fields["worker_id"])
	assert.Equal(t, "LM12345678", fields["order_number"])
}

func TestNewZapLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	l, err := NewZapLogger("verbose")
	require.NoError(t, err)
	assert.NotNil(t, l)
}
