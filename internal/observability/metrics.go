package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Event bus metrics
	eventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codecli_events_published_total",
			Help: "Total number of events published on the bus",
		},
		[]string{"kind"},
	)

	eventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codecli_events_dropped_total",
			Help: "Total number of events dropped because a subscriber buffer was full",
		},
		[]string{"subscriber"},
	)

	// Security gate metrics
	gateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codecli_gate_decisions_total",
			Help: "Total number of security gate decisions",
		},
		[]string{"verdict", "reason"},
	)

	// Tool execution metrics
	toolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codecli_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"},
	)

	toolExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codecli_tool_execution_duration_seconds",
			Help:    "Tool execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	// Conversation metrics
	compressionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codecli_context_compressions_total",
			Help: "Total number of conversation compressions",
		},
	)

	checkpointsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codecli_checkpoints_total",
			Help: "Total number of checkpoints captured",
		},
	)
)

func init() {
	prometheus.MustRegister(
		eventsPublishedTotal,
		eventsDroppedTotal,
		gateDecisionsTotal,
		toolExecutionsTotal,
		toolExecutionDuration,
		compressionsTotal,
		checkpointsTotal,
	)
}

// RecordEventPublished increments the published-event counter for kind.
func RecordEventPublished(kind string) {
	eventsPublishedTotal.WithLabelValues(kind).Inc()
}

// RecordEventDropped increments the dropped-event counter for a subscriber.
func RecordEventDropped(subscriber string) {
	eventsDroppedTotal.WithLabelValues(subscriber).Inc()
}

// RecordGateDecision increments the decision counter.
func RecordGateDecision(verdict, reason string) {
	gateDecisionsTotal.WithLabelValues(verdict, reason).Inc()
}

// RecordToolExecution records one tool execution with its outcome and duration.
func RecordToolExecution(tool, status string, seconds float64) {
	toolExecutionsTotal.WithLabelValues(tool, status).Inc()
	toolExecutionDuration.WithLabelValues(tool).Observe(seconds)
}

// RecordCompression increments the compression counter.
func RecordCompression() {
	compressionsTotal.Inc()
}

// RecordCheckpoint increments the checkpoint counter.
func RecordCheckpoint() {
	checkpointsTotal.Inc()
}
