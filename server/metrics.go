package server

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "quill",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Story sessions currently hosted.",
		},
	)
	sessionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "quill",
			Subsystem: "sessions",
			Name:      "expired_total",
			Help:      "Sessions removed for being idle.",
		},
	)
	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quill",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Story service requests by procedure and result code.",
		},
		[]string{"procedure", "code"},
	)
	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quill",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Story service request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"procedure"},
	)
	turnSteps = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "quill",
			Subsystem: "engine",
			Name:      "turn_steps",
			Help:      "Steps taken per turn.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
		},
	)
)

// RegisterMetrics registers the server's collectors with the default
// registry. It is safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(sessionsActive, sessionsExpired, rpcRequests, rpcDuration, turnSteps)
	})
}

func recordRequest(procedure, code string, duration time.Duration) {
	rpcRequests.WithLabelValues(procedure, code).Inc()
	rpcDuration.WithLabelValues(procedure).Observe(duration.Seconds())
}

func recordTurn(steps int) {
	turnSteps.Observe(float64(steps))
}
