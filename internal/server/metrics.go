package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what moves through the voice service. Registered
// against an injected registry so tests stay isolated.
type Metrics struct {
	Connections     prometheus.Counter
	AudioChunks     prometheus.Counter
	AudioBytes      prometheus.Counter
	Transcripts     prometheus.Counter
	Recommendations prometheus.Counter
	CycleErrors     *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_connections_total",
			Help: "WebSocket connections accepted.",
		}),
		AudioChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_audio_chunks_total",
			Help: "Audio chunks received.",
		}),
		AudioBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_audio_bytes_total",
			Help: "Decoded audio bytes received.",
		}),
		Transcripts: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_transcripts_total",
			Help: "Recording cycles successfully transcribed.",
		}),
		Recommendations: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_recommendations_total",
			Help: "Recording cycles that produced recommendations.",
		}),
		CycleErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_cycle_errors_total",
			Help: "Recording cycles that failed, by stage.",
		}, []string{"stage"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_cycle_duration_seconds",
			Help:    "Stop-to-result latency of the processing pipeline.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
