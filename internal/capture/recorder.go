package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/metrics"
)

// ErrWindowClosed is returned when capture is invoked outside the recording window.
var ErrWindowClosed = errors.New("outside recording window")

// ErrStreamEnded is returned when the source stream reaches EOF.
var ErrStreamEnded = errors.New("stream ended")

// State represents the current state of the capture run
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateRotating
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateRotating:
		return "rotating"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Gate decides whether capture may start.
type Gate interface {
	IsOpen(now time.Time) bool
}

// Chunk is a closed audio chunk file
type Chunk struct {
	Path     string        `json:"path"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Bytes    int64         `json:"bytes"`
}

// Config contains configuration for the recorder
type Config struct {
	Dir           string        // root of the day-partitioned audio tree
	Prefix        string        // file name prefix, e.g. "stream_"
	Extension     string        // file extension including the dot, e.g. ".mp3"
	ChunkDuration time.Duration // rotation threshold
	BlockSize     int           // bytes per read
}

// Stats represents recorder statistics
type Stats struct {
	State        string        `json:"state"`
	Rotations    uint64        `json:"rotations"`
	ChunksClosed uint64        `json:"chunks_closed"`
	BytesWritten int64         `json:"bytes_written"`
	CurrentPath  string        `json:"current_path,omitempty"`
	CurrentAge   time.Duration `json:"current_age"`
	LastChunk    *Chunk        `json:"last_chunk,omitempty"`
}

// Recorder writes a byte stream into rotating chunk files.
// The gate is consulted when Record starts and whenever a chunk is due to
// rotate; a chunk in progress is always allowed to finish even if the window
// closes meanwhile.
type Recorder struct {
	config  Config
	gate    Gate
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// OnChunk is called after each chunk file is closed.
	OnChunk func(Chunk)

	state        State
	file         *os.File
	current      Chunk
	rotations    uint64
	chunksClosed uint64
	bytesWritten int64
	lastChunk    *Chunk

	mu sync.RWMutex
}

// NewRecorder creates a new chunk recorder
func NewRecorder(config Config, gate Gate, logger *slog.Logger, m *metrics.Metrics) (*Recorder, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("audio directory cannot be empty")
	}
	if config.ChunkDuration <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %v", config.ChunkDuration)
	}
	if gate == nil {
		return nil, fmt.Errorf("gate cannot be nil")
	}
	if config.BlockSize <= 0 {
		config.BlockSize = 1024
	}
	if config.Extension == "" {
		config.Extension = ".mp3"
	}
	if config.Prefix == "" {
		config.Prefix = "stream_"
	}

	return &Recorder{
		config:  config,
		gate:    gate,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		state:   StateIdle,
	}, nil
}

// Record copies stream into chunk files until the stream fails, ctx is
// cancelled or the window is found closed at a chunk boundary. The last two
// close the current chunk and return nil. Stream errors, including EOF, are
// returned wrapped and are not retried.
func (r *Recorder) Record(ctx context.Context, stream io.Reader) error {
	now := r.now()
	if !r.gate.IsOpen(now) {
		r.setState(StateStopped)
		r.logger.Warn("Not during recording time", slog.Time("now", now))
		return ErrWindowClosed
	}

	if err := r.openChunk(now); err != nil {
		r.setState(StateStopped)
		return err
	}
	r.setState(StateCapturing)

	buf := make([]byte, r.config.BlockSize)
	for {
		if ctx.Err() != nil {
			r.logger.Info("Capture interrupted, closing current chunk")
			return r.stop(nil)
		}

		n, readErr := stream.Read(buf)
		if n > 0 {
			if err := r.write(buf[:n]); err != nil {
				return r.stop(err)
			}
		}

		if readErr != nil {
			if ctx.Err() != nil {
				r.logger.Info("Capture interrupted, closing current chunk")
				return r.stop(nil)
			}
			if errors.Is(readErr, io.EOF) {
				return r.stop(ErrStreamEnded)
			}
			return r.stop(fmt.Errorf("read stream: %w", readErr))
		}

		if now := r.now(); now.Sub(r.chunkStart()) > r.config.ChunkDuration {
			if !r.gate.IsOpen(now) {
				r.logger.Info("Recording window closed, finishing", slog.Time("now", now))
				return r.stop(nil)
			}
			if err := r.rotate(now); err != nil {
				return r.stop(err)
			}
		}
	}
}

// rotate closes the current chunk and opens the next one
func (r *Recorder) rotate(now time.Time) error {
	r.setState(StateRotating)

	if err := r.closeChunk(now); err != nil {
		return err
	}
	if err := r.openChunk(now); err != nil {
		return err
	}

	r.mu.Lock()
	r.rotations++
	r.mu.Unlock()

	r.setState(StateCapturing)
	return nil
}

// stop closes the current chunk and moves to the terminal state
func (r *Recorder) stop(cause error) error {
	closeErr := r.closeChunk(r.now())
	r.setState(StateStopped)

	if cause != nil {
		return cause
	}
	return closeErr
}

// ChunkPath returns the file path for a chunk starting at start
func (r *Recorder) ChunkPath(start time.Time) string {
	start = start.UTC()
	name := r.config.Prefix + start.Format("2006-01-02T15:04:05") + r.config.Extension
	return filepath.Join(r.config.Dir, start.Format("2006-01-02"), name)
}

func (r *Recorder) openChunk(start time.Time) error {
	path := r.ChunkPath(start)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create chunk directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open chunk file: %w", err)
	}

	r.mu.Lock()
	r.file = file
	r.current = Chunk{Path: path, Start: start.UTC()}
	r.mu.Unlock()

	r.logger.Info("Writing stream to file", slog.String("path", path))
	return nil
}

func (r *Recorder) write(block []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return fmt.Errorf("no open chunk")
	}
	n, err := r.file.Write(block)
	r.current.Bytes += int64(n)
	r.bytesWritten += int64(n)
	if err != nil {
		return fmt.Errorf("write chunk %s: %w", r.current.Path, err)
	}
	r.metrics.RecordBytesCaptured(n)
	return nil
}

// closeChunk closes the open file, if any. A trailing chunk that never
// received a block is removed instead of being left behind empty.
func (r *Recorder) closeChunk(end time.Time) error {
	r.mu.Lock()
	file := r.file
	chunk := r.current
	r.file = nil
	r.current = Chunk{}
	r.mu.Unlock()

	if file == nil {
		return nil
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close chunk %s: %w", chunk.Path, err)
	}

	if chunk.Bytes == 0 {
		if err := os.Remove(chunk.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("Failed to remove empty chunk", slog.String("path", chunk.Path), slog.String("error", err.Error()))
		}
		r.logger.Debug("Discarded empty chunk", slog.String("path", chunk.Path))
		return nil
	}

	chunk.Duration = end.Sub(chunk.Start)

	r.mu.Lock()
	r.chunksClosed++
	r.lastChunk = &chunk
	r.mu.Unlock()

	r.metrics.RecordChunkClosed(chunk.Duration.Seconds(), chunk.Bytes)
	r.logger.Info("Chunk closed",
		slog.String("path", chunk.Path),
		slog.Duration("duration", chunk.Duration),
		slog.Int64("bytes", chunk.Bytes),
	)

	if r.OnChunk != nil {
		r.OnChunk(chunk)
	}
	return nil
}

func (r *Recorder) chunkStart() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Start
}

func (r *Recorder) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	r.metrics.SetCaptureState(int(s))
}

// State returns the current state of the recorder
func (r *Recorder) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// GetStats returns current recorder statistics
func (r *Recorder) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		State:        r.state.String(),
		Rotations:    r.rotations,
		ChunksClosed: r.chunksClosed,
		BytesWritten: r.bytesWritten,
		CurrentPath:  r.current.Path,
	}
	if !r.current.Start.IsZero() {
		stats.CurrentAge = r.now().Sub(r.current.Start)
	}
	if r.lastChunk != nil {
		last := *r.lastChunk
		stats.LastChunk = &last
	}
	return stats
}
