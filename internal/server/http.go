package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/config"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/metrics"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/window"
)

// StatsFunc returns a JSON-encodable snapshot of a component
type StatsFunc func() any

// HTTPServer provides HTTP endpoints for monitoring a running process
type HTTPServer struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
	config   *config.Config
	gate     *window.Gate
	gatherer prometheus.Gatherer
	metrics  *metrics.Metrics
	service  string

	components map[string]StatsFunc

	// Server state
	startTime time.Time
	mu        sync.RWMutex
}

// HTTPServerConfig contains HTTP server configuration
type HTTPServerConfig struct {
	Address string
	Port    int
	Service string // process name reported by the API
}

// NewHTTPServer creates a new status server. gate is the time window of the
// process and may be nil; gatherer serves /metrics.
func NewHTTPServer(cfg HTTPServerConfig, logger *slog.Logger, appConfig *config.Config,
	gate *window.Gate, gatherer prometheus.Gatherer, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:     logger,
		config:     appConfig,
		gate:       gate,
		gatherer:   gatherer,
		metrics:    m,
		service:    cfg.Service,
		components: make(map[string]StatsFunc),
		startTime:  time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Address, fmt.Sprintf("%d", cfg.Port)),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Register exposes a component under /stats/{name}
func (h *HTTPServer) Register(name string, stats StatsFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = stats
}

// Handler returns the root handler, for use with httptest
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))
	mux.HandleFunc("/stats/", h.withMetrics("/stats/{component}", h.handleComponentStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	if h.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start binds the listen address and serves in the background
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP status server",
		slog.String("address", h.server.Addr),
	)

	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.server.Addr, err)
	}
	h.mu.Lock()
	h.listener = ln
	h.mu.Unlock()

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Addr returns the bound address once Start has succeeded
func (h *HTTPServer) Addr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.listener == nil {
		return h.server.Addr
	}
	return h.listener.Addr().String()
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP status server...")

	return h.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := time.Now()
	health := map[string]any{
		"status":    "healthy",
		"service":   h.service,
		"timestamp": now.UTC(),
		"uptime":    time.Since(h.startTime).String(),
	}
	if h.gate != nil {
		health["window"] = map[string]any{
			"range":      h.gate.String(),
			"open":       h.gate.IsOpen(now),
			"local_time": h.gate.Local(now).Format("15:04:05"),
		}
	}

	writeJSON(w, health)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.config == nil {
		http.Error(w, "Configuration not available", http.StatusNotFound)
		return
	}

	c := h.config
	// Secrets are left out
	sanitizedConfig := map[string]any{
		"timezone": c.Timezone,
		"stream": map[string]any{
			"url":             c.Stream.URL,
			"connect_timeout": c.Stream.ConnectTimeout,
			"read_timeout":    c.Stream.ReadTimeout,
		},
		"capture":    c.Capture,
		"processing": c.Processing,
		"storage":    c.Storage,
		"transcription": map[string]any{
			"backend":  c.Transcription.Backend,
			"endpoint": c.Transcription.Endpoint,
			"model":    c.Transcription.Model,
			"language": c.Transcription.Language,
			"timeout":  c.Transcription.Timeout,
		},
		"alerts": map[string]any{
			"terms":        c.Alerts.Terms(),
			"dispatch_per": c.Alerts.DispatchPer,
		},
		"notify": map[string]any{
			"sinks": c.Notify.Sinks,
		},
		"logging": c.Logging,
	}

	writeJSON(w, sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.RLock()
	components := make(map[string]any, len(h.components))
	for name, fn := range h.components {
		components[name] = fn()
	}
	h.mu.RUnlock()

	writeJSON(w, map[string]any{
		"service":    h.service,
		"uptime":     time.Since(h.startTime).String(),
		"timestamp":  time.Now().UTC(),
		"components": components,
	})
}

// handleComponentStats implements the /stats/{component} endpoint
func (h *HTTPServer) handleComponentStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/stats/")
	if name == "" {
		http.Error(w, "Component name required", http.StatusBadRequest)
		return
	}

	h.mu.RLock()
	fn, ok := h.components[name]
	h.mu.RUnlock()
	if !ok {
		http.Error(w, "Component not found", http.StatusNotFound)
		return
	}

	writeJSON(w, fn())
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	endpoints := map[string]string{
		"GET /":        "API documentation",
		"GET /health":  "Liveness and time window state",
		"GET /config":  "Configuration without secrets",
		"GET /stats":   "Statistics of all components",
		"GET /metrics": "Prometheus metrics",
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.components))
	for name := range h.components {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)
	for _, name := range names {
		endpoints["GET /stats/"+name] = "Statistics of " + name
	}

	writeJSON(w, map[string]any{
		"service":   h.service,
		"endpoints": endpoints,
		"timestamp": time.Now().UTC(),
	})
}
