package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeChunk(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream_2024-05-01T06:00:00.mp3")
	if err := os.WriteFile(path, []byte(strings.Repeat("a", size)), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidateChunk(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		maxSize int64
		wantErr error
	}{
		{"valid", func(t *testing.T) string { return writeChunk(t, 10) }, 0, nil},
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.mp3") }, 0, ErrFileNotFound},
		{"empty", func(t *testing.T) string { return writeChunk(t, 0) }, 0, ErrEmptyChunk},
		{"too large", func(t *testing.T) string { return writeChunk(t, 11) }, 10, ErrChunkTooLarge},
		{"at limit", func(t *testing.T) string { return writeChunk(t, 10) }, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateChunk(tt.path(t), tt.maxSize)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), Config{Backend: "carrier-pigeon"}); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestHTTPBackendTranscribe(t *testing.T) {
	var gotFields map[string]string
	var gotFile string
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotFields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			gotFields[k] = v[0]
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotFile = hdr.Filename + ":" + string(data)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "we are hiring in data science"})
	}))
	defer srv.Close()

	backend, err := NewHTTPBackend(Config{Endpoint: srv.URL, APIKey: "secret", Model: "large-v3", Language: "de"})
	if err != nil {
		t.Fatalf("NewHTTPBackend failed: %v", err)
	}

	path := writeChunk(t, 4)
	text, err := backend.Transcribe(context.Background(), path)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "we are hiring in data science" {
		t.Errorf("Unexpected text %q", text)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Expected bearer auth, got %q", gotAuth)
	}
	if gotFile != filepath.Base(path)+":aaaa" {
		t.Errorf("Unexpected uploaded file %q", gotFile)
	}
	for key, want := range map[string]string{"model": "large-v3", "language": "de", "response_format": "json", "temperature": "0"} {
		if gotFields[key] != want {
			t.Errorf("Field %s = %q, want %q", key, gotFields[key], want)
		}
	}

	stats := backend.Stats()
	if stats.TotalRequests != 1 || stats.SuccessRequests != 1 || stats.SuccessRate != 100 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestHTTPBackendErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	backend, err := NewHTTPBackend(Config{Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := backend.Transcribe(context.Background(), writeChunk(t, 4)); err == nil {
		t.Error("Expected error for 503 reply")
	} else if !strings.Contains(err.Error(), "503") {
		t.Errorf("Expected status in error, got %v", err)
	}

	if _, err := backend.Transcribe(context.Background(), writeChunk(t, 0)); !errors.Is(err, ErrEmptyChunk) {
		t.Errorf("Expected ErrEmptyChunk, got %v", err)
	}

	stats := backend.Stats()
	if stats.TotalRequests != 1 || stats.FailedRequests != 1 || stats.RejectedChunks != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats.LastError == "" {
		t.Error("Expected last error to be recorded")
	}
}

func TestNewHTTPBackendValidation(t *testing.T) {
	if _, err := NewHTTPBackend(Config{}); err == nil {
		t.Error("Expected error for empty endpoint")
	}
}

func TestOpenAIBackendTranscribe(t *testing.T) {
	var gotPath, gotModel, gotTemperature string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		gotTemperature = r.FormValue("temperature")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "Data Engineering role"})
	}))
	defer srv.Close()

	backend, err := NewOpenAIBackend(Config{APIKey: "sk-test", Endpoint: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAIBackend failed: %v", err)
	}

	text, err := backend.Transcribe(context.Background(), writeChunk(t, 8))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "Data Engineering role" {
		t.Errorf("Unexpected text %q", text)
	}
	if gotPath != "/v1/audio/transcriptions" {
		t.Errorf("Unexpected request path %s", gotPath)
	}
	if gotModel != "whisper-1" {
		t.Errorf("Expected default model whisper-1, got %q", gotModel)
	}
	if gotTemperature != "" && gotTemperature != "0" && gotTemperature != "0.00" {
		t.Errorf("Expected zero temperature, got %q", gotTemperature)
	}
}

func TestOpenAIBackendRejectsOversize(t *testing.T) {
	backend, err := NewOpenAIBackend(Config{APIKey: "sk-test", Endpoint: "http://127.0.0.1:1/v1", MaxFileSize: 4})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := backend.Transcribe(context.Background(), writeChunk(t, 5)); !errors.Is(err, ErrChunkTooLarge) {
		t.Errorf("Expected ErrChunkTooLarge, got %v", err)
	}
	if _, err := NewOpenAIBackend(Config{}); err == nil {
		t.Error("Expected error for missing API key")
	}
}

func TestGeminiBackendTranscribe(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":" Data Analytics team \n"}]}}]}`)
	}))
	defer srv.Close()

	backend, err := NewGeminiBackend(context.Background(), Config{APIKey: "key", Endpoint: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewGeminiBackend failed: %v", err)
	}

	text, err := backend.Transcribe(context.Background(), writeChunk(t, 3))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "Data Analytics team" {
		t.Errorf("Unexpected text %q", text)
	}
	if gotBody["contents"] == nil {
		t.Error("Expected contents in request body")
	}
	if stats := backend.Stats(); stats.Backend != BackendGemini || stats.SuccessRequests != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}
