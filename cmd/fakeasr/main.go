// Command fakeasr is a stand-in whisper server for local runs of the http
// transcription backend. It answers every upload with the next of a fixed
// list of transcripts.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration"`
}

// transcriptHandler replies to multipart uploads with canned texts in turn
type transcriptHandler struct {
	texts  []string
	delay  time.Duration
	logger *slog.Logger

	mu   sync.Mutex
	next int
}

func (h *transcriptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	size, err := io.Copy(io.Discard, file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Transcription request received",
		slog.String("filename", header.Filename),
		slog.Int64("size", size),
		slog.String("model", r.FormValue("model")),
		slog.String("language", r.FormValue("language")),
	)

	// Simulate processing time
	time.Sleep(h.delay)

	h.mu.Lock()
	text := h.texts[h.next%len(h.texts)]
	h.next++
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transcriptionResponse{
		Text:     text,
		Language: r.FormValue("language"),
		Duration: 30,
	})

	h.logger.Info("Transcription response sent", slog.String("text", text))
}

func main() {
	addr := flag.String("addr", ":9000", "Listen address")
	texts := flag.String("texts", "Guten Morgen, hier sind die Nachrichten|Wir suchen Verstärkung im Bereich Data Sciense|Das Wetter bleibt sonnig",
		"Transcripts to return, separated by |")
	delay := flag.Duration("delay", 200*time.Millisecond, "Simulated processing time")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	mux := http.NewServeMux()
	mux.Handle("/transcribe", &transcriptHandler{
		texts:  strings.Split(*texts, "|"),
		delay:  *delay,
		logger: logger,
	})

	logger.Info("Fake ASR server starting",
		slog.String("addr", *addr),
		slog.String("endpoint", "http://localhost"+*addr+"/transcribe"),
	)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
