package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request lifecycle metrics
	RequestsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_requests_processed_total",
			Help: "Total number of requests reported by the processing loop",
		},
		[]string{"state", "cancelled"},
	)

	RequestsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_requests_skipped_total",
			Help: "Total number of dequeued requests skipped because they were already settled",
		},
		[]string{"old_state"}, // FINISHED, ABORTED
	)

	RequestExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_request_execution_duration_seconds",
			Help:    "Time to execute or refund all transfers of a request",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"}, // execute, refund
	)

	// Transfer metrics
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_transfers_total",
			Help: "Total number of transfer attempts",
		},
		[]string{"operation", "result"}, // result: completed, failed, cancelled
	)

	// Queue and cache metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "settlement_queue_depth",
			Help: "Number of requests waiting in the queue",
		},
	)

	CachedRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "settlement_cached_requests",
			Help: "Number of in-flight requests tracked by the cache",
		},
	)

	// Reporting metrics
	SendFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_send_failures_total",
			Help: "Total number of swallowed sender transport failures",
		},
		[]string{"sink"},
	)

	// Reconciliation metrics
	StuckRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_stuck_requests_total",
			Help: "Total number of cached requests found without an enqueue acknowledgement",
		},
	)

	// Command metrics
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_commands_total",
			Help: "Total number of handled commands",
		},
		[]string{"command", "success"},
	)
)
