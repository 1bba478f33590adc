package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the capture and processing drivers.
// All Record/Set methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Capture metrics
	ChunksClosed  prometheus.Counter
	BytesCaptured prometheus.Counter
	ChunkDuration prometheus.Histogram
	ChunkSize     prometheus.Histogram
	CaptureState  prometheus.Gauge

	// Processing metrics
	Cycles                prometheus.Counter
	FilesFound            prometheus.Counter
	FilesProcessed        prometheus.Counter
	FileFailures          *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram
	ArchiveAppends        prometheus.Counter

	// Alert metrics
	AlertEvents     *prometheus.CounterVec
	AlertsSent      *prometheus.CounterVec
	AlertSinkErrors *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
// Passing prometheus.DefaultRegisterer exposes them on promhttp.Handler().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Capture metrics
		ChunksClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "radio_chunks_closed_total",
			Help: "Total number of audio chunk files closed",
		}),
		BytesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "radio_bytes_captured_total",
			Help: "Total number of stream bytes written to chunk files",
		}),
		ChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "radio_chunk_duration_seconds",
			Help:    "Wall-clock duration covered by closed chunk files",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8 minutes
		}),
		ChunkSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "radio_chunk_size_bytes",
			Help:    "Size of closed chunk files in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 14), // 1KB to ~16MB
		}),
		CaptureState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "radio_capture_state",
			Help: "Current capture state (0 idle, 1 capturing, 2 rotating, 3 stopped)",
		}),

		// Processing metrics
		Cycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "radio_processing_cycles_total",
			Help: "Total number of processing poll cycles run",
		}),
		FilesFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "radio_files_found_total",
			Help: "Total number of recent chunk files returned by the freshness scan",
		}),
		FilesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "radio_files_processed_total",
			Help: "Total number of chunk files transcribed successfully",
		}),
		FileFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radio_file_failures_total",
			Help: "Total number of chunk files skipped because of an error",
		}, []string{"stage"}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "radio_transcription_duration_seconds",
			Help:    "Duration of transcription calls",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		}),
		ArchiveAppends: factory.NewCounter(prometheus.CounterOpts{
			Name: "radio_archive_appends_total",
			Help: "Total number of transcripts appended to the hourly archive",
		}),

		// Alert metrics
		AlertEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radio_alert_events_total",
			Help: "Total number of fuzzy term matches",
		}, []string{"tier"}),
		AlertsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radio_alerts_sent_total",
			Help: "Total number of alert messages handed to the notification sink",
		}, []string{"tier"}),
		AlertSinkErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radio_alert_sink_errors_total",
			Help: "Total number of notification sink failures",
		}, []string{"tier"}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radio_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "radio_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radio_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordBytesCaptured adds n to the captured bytes counter
func (m *Metrics) RecordBytesCaptured(n int) {
	if m == nil {
		return
	}
	m.BytesCaptured.Add(float64(n))
}

// RecordChunkClosed records a closed chunk file
func (m *Metrics) RecordChunkClosed(durationSeconds float64, sizeBytes int64) {
	if m == nil {
		return
	}
	m.ChunksClosed.Inc()
	m.ChunkDuration.Observe(durationSeconds)
	m.ChunkSize.Observe(float64(sizeBytes))
}

// SetCaptureState sets the capture state gauge
func (m *Metrics) SetCaptureState(state int) {
	if m == nil {
		return
	}
	m.CaptureState.Set(float64(state))
}

// RecordCycle records one processing cycle and the number of files it found
func (m *Metrics) RecordCycle(filesFound int) {
	if m == nil {
		return
	}
	m.Cycles.Inc()
	m.FilesFound.Add(float64(filesFound))
}

// RecordTranscription records a transcription call
func (m *Metrics) RecordTranscription(durationSeconds float64, success bool) {
	if m == nil {
		return
	}
	m.TranscriptionDuration.Observe(durationSeconds)
	if success {
		m.FilesProcessed.Inc()
	}
}

// RecordFileFailure records a skipped file and the stage that failed
func (m *Metrics) RecordFileFailure(stage string) {
	if m == nil {
		return
	}
	m.FileFailures.WithLabelValues(stage).Inc()
}

// RecordArchiveAppend increments the archive appends counter
func (m *Metrics) RecordArchiveAppend() {
	if m == nil {
		return
	}
	m.ArchiveAppends.Inc()
}

// RecordAlertEvent records a term match
func (m *Metrics) RecordAlertEvent(tier string) {
	if m == nil {
		return
	}
	m.AlertEvents.WithLabelValues(tier).Inc()
}

// RecordAlertSent records a message handed to the sink
func (m *Metrics) RecordAlertSent(tier string) {
	if m == nil {
		return
	}
	m.AlertsSent.WithLabelValues(tier).Inc()
}

// RecordAlertSinkError records a failed sink delivery
func (m *Metrics) RecordAlertSinkError(tier string) {
	if m == nil {
		return
	}
	m.AlertSinkErrors.WithLabelValues(tier).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
