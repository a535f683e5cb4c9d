package uploadmetrics

import (
	"context"
	"sync"
)

// Call represents a single per-node sliver upload outcome.
type Call struct {
	Node       string `json:"node"`
	Sliver     int    `json:"sliver"`
	Bytes      int    `json:"bytes"`
	Attempts   int    `json:"attempts"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// -------- Capture keys  -------------------------

type captureKeyCtx struct{}

// WithCaptureKey makes uploads issued under ctx report to key instead of the
// blob id. Flows use their session id so two sessions uploading identical
// content keep separate captures.
func WithCaptureKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, captureKeyCtx{}, key)
}

// CaptureKey returns the key set by WithCaptureKey, or fallback.
func CaptureKey(ctx context.Context, fallback string) string {
	if k, ok := ctx.Value(captureKeyCtx{}).(string); ok && k != "" {
		return k
	}
	return fallback
}

// -------- Lightweight hooks  -------------------------

var (
	uploadMu   sync.RWMutex
	uploadHook = make(map[string]func(Call))
)

// RegisterUploadHook registers a callback to receive upload calls for a capture key.
func RegisterUploadHook(key string, fn func(Call)) {
	uploadMu.Lock()
	defer uploadMu.Unlock()
	if fn == nil {
		delete(uploadHook, key)
		return
	}
	uploadHook[key] = fn
}

// UnregisterUploadHook removes the registered upload callback for a capture key.
func UnregisterUploadHook(key string) { RegisterUploadHook(key, nil) }

// RecordUpload feeds the Prometheus counters and invokes the registered
// callback for the key, if any.
func RecordUpload(key string, c Call) {
	observeUpload(c)

	uploadMu.RLock()
	fn := uploadHook[key]
	uploadMu.RUnlock()
	if fn != nil {
		fn(c)
	}
}

// -------- Minimal in-process collector --------------------------

type uploadSession struct {
	CallsByNode map[string][]Call
	Acked       int
	Required    int
	DurationMS  int64
}

var sessions = struct {
	sync.Mutex
	m map[string]*uploadSession
}{m: map[string]*uploadSession{}}

func sessionFor(key string) *uploadSession {
	s := sessions.m[key]
	if s == nil {
		s = &uploadSession{CallsByNode: map[string][]Call{}}
		sessions.m[key] = s
	}
	return s
}

// StartUploadCapture hooks upload callbacks into the session collector.
func StartUploadCapture(key string) {
	RegisterUploadHook(key, func(c Call) {
		sessions.Lock()
		defer sessions.Unlock()
		s := sessionFor(key)
		s.CallsByNode[c.Node] = append(s.CallsByNode[c.Node], c)
	})
}

// StopUploadCapture detaches the collector. Collected data stays available
// until ClearUploadSession.
func StopUploadCapture(key string) { UnregisterUploadHook(key) }

// SetUploadSummary records the quorum outcome of an upload pass.
func SetUploadSummary(key string, acked, required int, durationMS int64) {
	if key == "" {
		return
	}
	sessions.Lock()
	defer sessions.Unlock()
	s := sessionFor(key)
	s.Acked = acked
	s.Required = required
	s.DurationMS = durationMS
}

// ClearUploadSession drops collected data for a key.
func ClearUploadSession(key string) {
	sessions.Lock()
	defer sessions.Unlock()
	delete(sessions.m, key)
}

// BuildUploadPayload builds the upload section of an event payload.
func BuildUploadPayload(key string) map[string]any {
	sessions.Lock()
	defer sessions.Unlock()

	s := sessions.m[key]
	if s == nil {
		return map[string]any{
			"upload": map[string]any{
				"duration_ms":      int64(0),
				"acked":            0,
				"required":         0,
				"success_rate_pct": float64(0),
				"calls_by_node":    map[string][]Call{},
			},
		}
	}

	totalCalls := 0
	successCalls := 0
	calls := make(map[string][]Call, len(s.CallsByNode))
	for node, cs := range s.CallsByNode {
		calls[node] = append([]Call(nil), cs...)
		for _, c := range cs {
			totalCalls++
			if c.Success {
				successCalls++
			}
		}
	}
	var successRate float64
	if totalCalls > 0 {
		successRate = float64(successCalls) / float64(totalCalls) * 100.0
	}
	return map[string]any{
		"upload": map[string]any{
			"duration_ms":      s.DurationMS,
			"acked":            s.Acked,
			"required":         s.Required,
			"success_rate_pct": successRate,
			"calls_by_node":    calls,
		},
	}
}
