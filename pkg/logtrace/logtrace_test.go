package logtrace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextFieldsAreStamped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	ctx := CtxWithOrigin(CtxWithCorrelationID(context.Background(), "flow-1"), "register")
	Info(ctx, "register: signed", Fields{FieldRegisterDigest: "0xabc"})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "register: signed", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "flow-1", fields[FieldCorrelationID])
	assert.Equal(t, "register", fields[FieldOrigin])
	assert.Equal(t, "0xabc", fields[FieldRegisterDigest])
}

func TestWithFieldsDoesNotMutateBase(t *testing.T) {
	base := Fields{FieldModule: "flow"}
	merged := WithFields(base, Fields{FieldState: "idle"})
	assert.Len(t, base, 1)
	assert.Len(t, merged, 2)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}
