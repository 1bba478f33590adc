package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/transcription"
)

func TestHandlerServesHTTPBackend(t *testing.T) {
	h := &transcriptHandler{
		texts:  []string{"first", "second"},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	backend, err := transcription.NewHTTPBackend(transcription.Config{Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "stream_a.mp3")
	if err := os.WriteFile(path, []byte("ID3"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"first", "second", "first"} {
		got, err := backend.Transcribe(context.Background(), path)
		if err != nil {
			t.Fatalf("Transcribe failed: %v", err)
		}
		if got != want {
			t.Errorf("Transcribe() = %q, want %q", got, want)
		}
	}
}

func TestHandlerRejectsGet(t *testing.T) {
	h := &transcriptHandler{texts: []string{"x"}, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transcribe", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}
