// Package archive appends transcripts to hourly text files.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/metrics"
)

// Archiver appends transcripts to <dir>/<UTC date>/text_<UTC hour>.txt.
// Files are only ever appended to.
type Archiver struct {
	dir     string
	metrics *metrics.Metrics

	mu       sync.Mutex
	appends  uint64
	lastPath string
}

// Stats represents archiver statistics
type Stats struct {
	Appends  uint64 `json:"appends"`
	LastPath string `json:"last_path,omitempty"`
}

// NewArchiver creates an archiver rooted at dir
func NewArchiver(dir string, m *metrics.Metrics) (*Archiver, error) {
	if dir == "" {
		return nil, fmt.Errorf("text directory cannot be empty")
	}
	return &Archiver{dir: dir, metrics: m}, nil
}

// Path returns the hourly file that a transcript produced at ts belongs to
func (a *Archiver) Path(ts time.Time) string {
	ts = ts.UTC()
	return filepath.Join(a.dir, ts.Format("2006-01-02"), "text_"+ts.Format("2006-01-02T15")+".txt")
}

// Append writes text followed by " \n" to the file for ts
func (a *Archiver) Append(text string, ts time.Time) error {
	path := a.Path(ts)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create text directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript file: %w", err)
	}

	if _, err := f.WriteString(text + " \n"); err != nil {
		f.Close()
		return fmt.Errorf("append transcript to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close transcript file %s: %w", path, err)
	}

	a.appends++
	a.lastPath = path
	a.metrics.RecordArchiveAppend()
	return nil
}

// GetStats returns current archiver statistics
func (a *Archiver) GetStats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{Appends: a.appends, LastPath: a.lastPath}
}
