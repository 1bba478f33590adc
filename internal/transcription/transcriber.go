package transcription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

var (
	// ErrFileNotFound is returned when the chunk file does not exist
	ErrFileNotFound = errors.New("chunk file not found")
	// ErrEmptyChunk is returned for a zero-byte chunk file
	ErrEmptyChunk = errors.New("chunk file is empty")
	// ErrChunkTooLarge is returned when the chunk exceeds the backend upload limit
	ErrChunkTooLarge = errors.New("chunk file exceeds backend size limit")
)

// Backend names accepted by New
const (
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
	BackendHTTP   = "http"
)

// Transcriber converts an audio file to text
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
	Stats() Stats
}

// Config contains transcription backend configuration
type Config struct {
	Backend     string
	Endpoint    string
	APIKey      string
	Model       string
	Language    string
	Prompt      string
	Timeout     time.Duration
	MaxFileSize int64
}

// Stats represents backend request statistics
type Stats struct {
	Backend         string        `json:"backend"`
	Model           string        `json:"model"`
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	RejectedChunks  uint64        `json:"rejected_chunks"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	LastError       string        `json:"last_error,omitempty"`
}

// New creates the Transcriber selected by config.Backend
func New(ctx context.Context, config Config) (Transcriber, error) {
	switch config.Backend {
	case BackendOpenAI:
		return NewOpenAIBackend(config)
	case BackendGemini:
		return NewGeminiBackend(ctx, config)
	case BackendHTTP:
		return NewHTTPBackend(config)
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", config.Backend)
	}
}

// validateChunk checks that path names a non-empty file within maxSize bytes.
// A maxSize of zero disables the size check.
func validateChunk(path string, maxSize int64) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyChunk, path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return 0, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrChunkTooLarge, path, info.Size(), maxSize)
	}
	return info.Size(), nil
}

// requestStats is embedded by every backend
type requestStats struct {
	backend string
	model   string

	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	rejectedChunks  uint64
	avgResponseTime time.Duration
	lastError       string

	mu sync.RWMutex
}

func (s *requestStats) recordRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectedChunks++
}

func (s *requestStats) recordResult(responseTime time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests++
	if err != nil {
		s.failedRequests++
		s.lastError = err.Error()
		return
	}
	s.successRequests++

	// Simple moving average
	if s.avgResponseTime == 0 {
		s.avgResponseTime = responseTime
	} else {
		s.avgResponseTime = (s.avgResponseTime + responseTime) / 2
	}
}

// Stats returns current backend statistics
func (s *requestStats) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	successRate := float64(0)
	if s.totalRequests > 0 {
		successRate = float64(s.successRequests) / float64(s.totalRequests) * 100
	}

	return Stats{
		Backend:         s.backend,
		Model:           s.model,
		TotalRequests:   s.totalRequests,
		SuccessRequests: s.successRequests,
		FailedRequests:  s.failedRequests,
		RejectedChunks:  s.rejectedChunks,
		SuccessRate:     successRate,
		AvgResponseTime: s.avgResponseTime,
		LastError:       s.lastError,
	}
}
