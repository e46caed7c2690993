package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_sessions_active",
		Help: "Currently active transcription sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_sessions_total",
		Help: "Total transcription sessions accepted",
	})

	AudioChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audio_chunks_processed_total",
		Help: "Total audio chunks received",
	})

	Segments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcript_segments_finalized_total",
		Help: "Finalized transcript segments appended",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Per-stage latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	}, []string{"stage"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})

	InsightRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insight_requests_total",
		Help: "Insight analysis calls by mode",
	}, []string{"mode"})

	MalformedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_malformed_messages_total",
		Help: "Inbound messages dropped as undecodable",
	})
)
