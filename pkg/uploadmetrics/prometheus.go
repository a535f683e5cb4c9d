package uploadmetrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blobflow"

var (
	transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "flow",
		Name:      "transitions_total",
		Help:      "Flow state transitions by source and target state.",
	}, []string{"from", "to"})

	failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "flow",
		Name:      "failures_total",
		Help:      "Flow failures by operation and error kind.",
	}, []string{"op", "kind"})

	uploadCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "upload",
		Name:      "sliver_calls_total",
		Help:      "Sliver upload calls by node and result.",
	}, []string{"node", "result"})

	uploadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "upload",
		Name:      "sliver_duration_seconds",
		Help:      "Sliver upload latency including retries.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"node"})

	registerOnce sync.Once
	registerErr  error
)

// Register adds the collectors to reg. Subsequent calls are no-ops.
func Register(reg prometheus.Registerer) error {
	registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{transitions, failures, uploadCalls, uploadDuration} {
			if err := reg.Register(c); err != nil {
				registerErr = err
				return
			}
		}
	})
	return registerErr
}

// ObserveTransition counts one state change.
func ObserveTransition(from, to string) {
	transitions.WithLabelValues(from, to).Inc()
}

// ObserveFailure counts one failed operation.
func ObserveFailure(op, kind string) {
	failures.WithLabelValues(op, kind).Inc()
}

func observeUpload(c Call) {
	result := "ok"
	if !c.Success {
		result = "error"
	}
	uploadCalls.WithLabelValues(c.Node, result).Inc()
	uploadDuration.WithLabelValues(c.Node).Observe(float64(c.DurationMS) / 1000)
}
