package uploadmetrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadCaptureSummary(t *testing.T) {
	const blob = "blob-capture"
	t.Cleanup(func() { ClearUploadSession(blob) })

	StartUploadCapture(blob)
	RecordUpload(blob, Call{Node: "n1", Sliver: 0, Success: true, DurationMS: 12})
	RecordUpload(blob, Call{Node: "n1", Sliver: 2, Success: false, Error: "503"})
	RecordUpload(blob, Call{Node: "n2", Sliver: 1, Success: true})
	StopUploadCapture(blob)
	RecordUpload(blob, Call{Node: "n3", Sliver: 3, Success: true})
	SetUploadSummary(blob, 2, 2, 40)

	up := BuildUploadPayload(blob)["upload"].(map[string]any)
	assert.Equal(t, 2, up["acked"])
	assert.Equal(t, int64(40), up["duration_ms"])
	calls := up["calls_by_node"].(map[string][]Call)
	assert.Len(t, calls["n1"], 2)
	assert.Len(t, calls["n2"], 1)
	assert.NotContains(t, calls, "n3", "calls after stop are not captured")
	assert.InDelta(t, 66.66, up["success_rate_pct"].(float64), 0.1)
}

func TestCaptureKeysAreIndependent(t *testing.T) {
	const blob = "same-content"
	ctxA := WithCaptureKey(context.Background(), "session-a")
	ctxB := WithCaptureKey(context.Background(), "session-b")
	keyA, keyB := CaptureKey(ctxA, blob), CaptureKey(ctxB, blob)
	require.Equal(t, "session-a", keyA)
	require.Equal(t, blob, CaptureKey(context.Background(), blob))
	t.Cleanup(func() {
		ClearUploadSession(keyA)
		ClearUploadSession(keyB)
	})

	StartUploadCapture(keyA)
	StartUploadCapture(keyB)
	RecordUpload(keyA, Call{Node: "n1", Success: true})
	RecordUpload(keyB, Call{Node: "n2", Success: true})
	RecordUpload(keyB, Call{Node: "n2", Success: true})
	StopUploadCapture(keyA)
	ClearUploadSession(keyA)

	upB := BuildUploadPayload(keyB)["upload"].(map[string]any)
	assert.Len(t, upB["calls_by_node"].(map[string][]Call)["n2"], 2)
	upA := BuildUploadPayload(keyA)["upload"].(map[string]any)
	assert.Empty(t, upA["calls_by_node"].(map[string][]Call))
}

func TestBuildUploadPayloadUnknownBlob(t *testing.T) {
	up := BuildUploadPayload("missing")["upload"].(map[string]any)
	assert.Equal(t, 0, up["acked"])
}

func TestPrometheusCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	before := testutil.ToFloat64(transitions.WithLabelValues("idle", "encoding"))
	ObserveTransition("idle", "encoding")
	assert.Equal(t, before+1, testutil.ToFloat64(transitions.WithLabelValues("idle", "encoding")))

	RecordUpload("any", Call{Node: "metrics-node", Success: false})
	assert.Equal(t, float64(1), testutil.ToFloat64(uploadCalls.WithLabelValues("metrics-node", "error")))
}
