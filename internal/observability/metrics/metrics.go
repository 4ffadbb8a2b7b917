// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice_chat"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Voice session metrics
	SessionsTotal  prometheus.Counter
	SessionsActive prometheus.Gauge

	// Recording state machine metrics
	Transitions         *prometheus.CounterVec
	TransitionsRejected *prometheus.CounterVec
	RecognitionMissing  prometheus.Counter

	// Transcript metrics
	TranscriptsInterim prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	// Recognition engine metrics
	EngineRestarts prometheus.Counter
	EngineErrors   *prometheus.CounterVec

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioChunksReceived prometheus.Counter

	// Waveform metrics
	WaveformFrames      *prometheus.CounterVec
	WaveformLoopsActive prometheus.Gauge

	// Chat metrics
	ChatRequests *prometheus.CounterVec
	ChatLatency  *prometheus.HistogramVec

	// Upload metrics
	Uploads     *prometheus.CounterVec
	UploadBytes prometheus.Counter

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// gRPC metrics
	RPCRequests      *prometheus.CounterVec
	HealthServing    prometheus.Gauge
	RPCStreamsTotal  prometheus.Counter
	RPCStreamsActive prometheus.Gauge
	RPCDuration      prometheus.Histogram

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates and registers all metrics with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of voice sessions opened",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently open voice sessions",
		}),

		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_transitions_total",
			Help:      "Recording state transitions",
		}, []string{"from", "to"}),
		TransitionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_transitions_rejected_total",
			Help:      "Commands ignored because they are invalid in the current state",
		}, []string{"command", "state"}),
		RecognitionMissing: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_unsupported_total",
			Help:      "Start attempts without a speech recognition capability",
		}),

		TranscriptsInterim: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_interim_total",
			Help:      "Total number of interim results accepted",
		}),
		TranscriptsFinal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total number of final results appended to a transcript",
		}),

		EngineRestarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_restarts_total",
			Help:      "Automatic recognition restarts after end of input",
		}),
		EngineErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Recognition engine errors",
		}, []string{"provider", "error_type"}),

		AudioBytesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioChunksReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_received_total",
			Help:      "Total audio chunks received",
		}),

		WaveformFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waveform_frames_total",
			Help:      "Waveform frames rendered",
		}, []string{"phase"}),
		WaveformLoopsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waveform_loops_active",
			Help:      "Waveform frame loops currently scheduling frames",
		}),

		ChatRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat messages handled",
		}, []string{"source", "outcome"}),
		ChatLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_latency_seconds",
			Help:      "Time to produce a chat response",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider"}),

		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Attachment uploads",
		}, []string{"outcome"}),
		UploadBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes stored by attachment uploads",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served",
		}, []string{"route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"route"}),

		RPCRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "gRPC calls handled by method and status code",
		}, []string{"method", "code"}),
		HealthServing: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_serving",
			Help:      "1 when the gRPC health service reports SERVING",
		}),

		RPCStreamsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_streams_total",
			Help:      "Total number of gRPC streams started",
		}),
		RPCStreamsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grpc_streams_active",
			Help:      "Number of currently active gRPC streams",
		}),
		RPCDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_stream_duration_seconds",
			Help:      "Duration of gRPC streams in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 30, 60, 300, 3600},
		}),

		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordSessionOpened records a voice session being opened.
func (m *Metrics) RecordSessionOpened() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionClosed records a voice session being closed.
func (m *Metrics) RecordSessionClosed() {
	m.SessionsActive.Dec()
}

// RecordTransition records a recording state change.
func (m *Metrics) RecordTransition(from, to string) {
	m.Transitions.WithLabelValues(from, to).Inc()
}

// RecordRejected records a command that was a no-op in the current state.
func (m *Metrics) RecordRejected(command, state string) {
	m.TransitionsRejected.WithLabelValues(command, state).Inc()
}

// RecordUnsupported records a start attempt without recognition support.
func (m *Metrics) RecordUnsupported() {
	m.RecognitionMissing.Inc()
}

// RecordInterim records an accepted interim result.
func (m *Metrics) RecordInterim() {
	m.TranscriptsInterim.Inc()
}

// RecordFinal records a final result appended to a transcript.
func (m *Metrics) RecordFinal() {
	m.TranscriptsFinal.Inc()
}

// RecordEngineRestart records an automatic recognition restart.
func (m *Metrics) RecordEngineRestart() {
	m.EngineRestarts.Inc()
}

// RecordEngineError records a recognition engine error.
func (m *Metrics) RecordEngineError(provider, errorType string) {
	m.EngineErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordAudioReceived records an audio chunk forwarded to an engine.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioChunksReceived.Inc()
}

// RecordFrame records a rendered waveform frame. Phase is "active", "relax" or "flat".
func (m *Metrics) RecordFrame(phase string) {
	m.WaveformFrames.WithLabelValues(phase).Inc()
}

// RecordLoopStarted records a waveform frame loop being scheduled.
func (m *Metrics) RecordLoopStarted() {
	m.WaveformLoopsActive.Inc()
}

// RecordLoopStopped records a waveform frame loop going idle.
func (m *Metrics) RecordLoopStopped() {
	m.WaveformLoopsActive.Dec()
}

// RecordChat records a handled chat message.
func (m *Metrics) RecordChat(source, outcome, provider string, latencySeconds float64) {
	m.ChatRequests.WithLabelValues(source, outcome).Inc()
	m.ChatLatency.WithLabelValues(provider).Observe(latencySeconds)
}

// RecordUpload records an upload attempt.
func (m *Metrics) RecordUpload(outcome string, bytes int64) {
	m.Uploads.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		m.UploadBytes.Add(float64(bytes))
	}
}

// RecordHTTP records a served HTTP request.
func (m *Metrics) RecordHTTP(route, code string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(route, code).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(durationSeconds)
}

// RecordRPC records a completed gRPC call.
func (m *Metrics) RecordRPC(method, code string) {
	m.RPCRequests.WithLabelValues(method, code).Inc()
}

// RecordHealth records the reported gRPC serving status.
func (m *Metrics) RecordHealth(serving bool) {
	if serving {
		m.HealthServing.Set(1)
		return
	}
	m.HealthServing.Set(0)
}

// RecordStreamStart records a new gRPC stream starting.
func (m *Metrics) RecordStreamStart() {
	m.RPCStreamsTotal.Inc()
	m.RPCStreamsActive.Inc()
}

// RecordStreamEnd records a gRPC stream ending.
func (m *Metrics) RecordStreamEnd(durationSeconds float64) {
	m.RPCStreamsActive.Dec()
	m.RPCDuration.Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
