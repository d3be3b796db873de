// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StreamsActive tracks answer streams currently being read.
	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_streams_active",
			Help: "Number of answer streams currently open",
		},
	)

	// ChunksReceived tracks content chunks applied to the transcript.
	ChunksReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_chunks_received_total",
			Help: "Total content chunks received across all streams",
		},
	)

	// FramesDropped tracks malformed frames skipped by the stream reader.
	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_frames_dropped_total",
			Help: "Malformed stream frames skipped during parsing",
		},
	)

	// TurnDuration tracks question-to-terminal latency per outcome.
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_turn_duration_seconds",
			Help:    "Duration of one question/answer turn",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"status"},
	)

	// TurnsTotal tracks completed turns per outcome.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_turns_total",
			Help: "Total question/answer turns by terminal status",
		},
		[]string{"status"},
	)

	// APIRequestsTotal tracks REST calls made by the API client.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_api_requests_total",
			Help: "Total REST requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)
)

// RecordTurn records metrics for one finished turn.
func RecordTurn(status string, seconds float64) {
	TurnDuration.WithLabelValues(status).Observe(seconds)
	TurnsTotal.WithLabelValues(status).Inc()
}

// RecordAPIRequest records metrics for one REST call.
func RecordAPIRequest(method, path, status string) {
	APIRequestsTotal.WithLabelValues(method, path, status).Inc()
}
