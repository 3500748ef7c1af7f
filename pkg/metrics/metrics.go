package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TailerLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailer_lines_total",
			Help: "Total number of lines read from tailed files (count)",
		},
		[]string{"file"},
	)

	TailerDroppedLinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailer_dropped_lines_total",
			Help: "Total number of lines dropped because the line queue was full (count)",
		},
		[]string{"file"},
	)

	TailerRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailer_rotations_total",
			Help: "Total number of rotations detected on tailed files (count)",
		},
		[]string{"file"},
	)

	PipelineMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_messages_total",
			Help: "Total number of messages handled by the pipeline runtime (count)",
		},
		[]string{"status"},
	)

	WindowsClosedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "windows_closed_total",
			Help: "Total number of aggregation windows closed (count)",
		},
	)

	ThrottledEmitters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "throttled_emitters",
			Help: "Number of emitters currently throttled (count)",
		},
	)

	ThrottleTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "throttle_transitions_total",
			Help: "Total number of throttle state transitions (count)",
		},
		[]string{"transition"},
	)

	EgressActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "egress_actions_total",
			Help: "Total number of index actions submitted to the bulk batcher (count)",
		},
		[]string{"status"},
	)

	EgressBatchFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "egress_batch_flushes_total",
			Help: "Total number of batch flushes by trigger (count)",
		},
		[]string{"trigger"},
	)

	EgressBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "egress_batch_duration_ms",
			Help:    "Duration of bulk dispatches in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures recorded by circuit breaker (count)",
		},
		[]string{"name"},
	)
)

var registerOnce sync.Once

// Register installs every pipeline collector into the default registry.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			TailerLinesTotal,
			TailerDroppedLinesTotal,
			TailerRotationsTotal,
			PipelineMessagesTotal,
			WindowsClosedTotal,
			ThrottledEmitters,
			ThrottleTransitionsTotal,
			EgressActionsTotal,
			EgressBatchFlushesTotal,
			EgressBatchDuration,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
		)
	})
}
