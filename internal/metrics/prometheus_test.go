package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics

	m.RecordBytesCaptured(10)
	m.RecordChunkClosed(1, 10)
	m.SetCaptureState(1)
	m.RecordCycle(3)
	m.RecordTranscription(0.5, true)
	m.RecordFileFailure("transcribe")
	m.RecordArchiveAppend()
	m.RecordAlertEvent("live")
	m.RecordAlertSent("live")
	m.RecordAlertSinkError("live")
	m.RecordHTTPRequest("GET", "/health", "200", 0.01)
	m.RecordHTTPError("GET", "/health", "server_error")
}

func TestRecordValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordBytesCaptured(1024)
	m.RecordBytesCaptured(512)
	m.RecordChunkClosed(30, 1536)
	m.RecordCycle(2)
	m.RecordCycle(3)
	m.RecordTranscription(1.2, true)
	m.RecordTranscription(0.3, false)
	m.RecordFileFailure("transcribe")
	m.RecordAlertEvent("live")
	m.RecordAlertEvent("live")
	m.RecordAlertEvent("dev")

	if got := testutil.ToFloat64(m.BytesCaptured); got != 1536 {
		t.Errorf("Expected 1536 bytes captured, got %v", got)
	}
	if got := testutil.ToFloat64(m.ChunksClosed); got != 1 {
		t.Errorf("Expected 1 chunk closed, got %v", got)
	}
	if got := testutil.ToFloat64(m.Cycles); got != 2 {
		t.Errorf("Expected 2 cycles, got %v", got)
	}
	if got := testutil.ToFloat64(m.FilesFound); got != 5 {
		t.Errorf("Expected 5 files found, got %v", got)
	}
	if got := testutil.ToFloat64(m.FilesProcessed); got != 1 {
		t.Errorf("Expected 1 file processed, got %v", got)
	}
	if got := testutil.ToFloat64(m.FileFailures.WithLabelValues("transcribe")); got != 1 {
		t.Errorf("Expected 1 transcribe failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.AlertEvents.WithLabelValues("live")); got != 2 {
		t.Errorf("Expected 2 live events, got %v", got)
	}
}

func TestNewMetricsOnSeparateRegistries(t *testing.T) {
	// Each registry gets its own collectors, so repeated construction must not panic
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(prometheus.NewRegistry())
}
