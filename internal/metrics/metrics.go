// Package metrics exposes the pipeline's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	SessionsActive      prometheus.Gauge
	SessionFailures     prometheus.Counter
	FramesProcessed     prometheus.Counter
	FramesDropped       prometheus.Counter
	ChunkQueueDepth     *prometheus.GaugeVec
	TranscriptsEmitted  *prometheus.CounterVec
	DeliveryFailures    *prometheus.CounterVec
	SynthesisRequests   prometheus.Counter
	SynthesisRejections prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicepipe_sessions_active",
			Help: "Number of live media sessions.",
		}),
		SessionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicepipe_session_failures_total",
			Help: "Sessions torn down by peer connection failure.",
		}),
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicepipe_frames_processed_total",
			Help: "Inbound audio frames through the receive pipeline.",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicepipe_frames_dropped_total",
			Help: "Frames or chunks dropped by single-frame faults or backpressure.",
		}),
		ChunkQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voicepipe_chunk_queue_depth",
			Help: "Recognition chunk queue depth per session; sustained growth means the pipeline is falling behind real time.",
		}, []string{"session"}),
		TranscriptsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicepipe_transcripts_total",
			Help: "Transcript segments emitted.",
		}, []string{"kind"}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicepipe_delivery_failures_total",
			Help: "Failed deliveries to downstream collaborators.",
		}, []string{"target"}),
		SynthesisRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicepipe_synthesis_requests_total",
			Help: "Accepted synthesis requests.",
		}),
		SynthesisRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicepipe_synthesis_rejections_total",
			Help: "Synthesis requests rejected by the depth-1 queue policy.",
		}),
	}
	reg.MustRegister(
		m.SessionsActive,
		m.SessionFailures,
		m.FramesProcessed,
		m.FramesDropped,
		m.ChunkQueueDepth,
		m.TranscriptsEmitted,
		m.DeliveryFailures,
		m.SynthesisRequests,
		m.SynthesisRejections,
	)
	return m
}

// NewNop returns metrics backed by a private registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
