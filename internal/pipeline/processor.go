package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/alert"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/metrics"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/scan"
)

// State represents the current state of the processing loop
type State int

const (
	StateChecking State = iota
	StateProcessing
	StateSleeping
	StateDone
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateProcessing:
		return "processing"
	case StateSleeping:
		return "sleeping"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Dispatch policies
const (
	DispatchPerEvent = "event"
	DispatchPerTerm  = "term"
)

// Gate decides whether the loop keeps running
type Gate interface {
	IsOpen(now time.Time) bool
}

// Transcriber converts a chunk file to text
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Dispatcher sends an alert for text without blocking
type Dispatcher interface {
	Dispatch(text string, tier alert.Tier)
}

// Archiver stores a transcript
type Archiver interface {
	Append(text string, ts time.Time) error
}

// Components are the collaborators of a Processor
type Components struct {
	Gate        Gate
	Transcriber Transcriber
	Matcher     *alert.Matcher
	Dispatcher  Dispatcher
	Archiver    Archiver
}

// Config contains configuration for the processor
type Config struct {
	AudioDir        string
	Extension       string
	PollInterval    time.Duration
	FreshnessWindow time.Duration
	DispatchPer     string
}

// FileResult is the outcome for one chunk file
type FileResult struct {
	Path   string        `json:"path"`
	Text   string        `json:"text,omitempty"`
	Events []alert.Event `json:"events,omitempty"`
	Stage  string        `json:"failed_stage,omitempty"`
	Err    error         `json:"-"`
}

// CycleResult summarises one poll cycle
type CycleResult struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Files     []FileResult  `json:"files"`
}

// Failed returns the number of files that were skipped because of an error
func (c CycleResult) Failed() int {
	n := 0
	for _, f := range c.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Stats represents processor statistics
type Stats struct {
	State          string       `json:"state"`
	Cycles         uint64       `json:"cycles"`
	FilesProcessed uint64       `json:"files_processed"`
	FilesFailed    uint64       `json:"files_failed"`
	AlertEvents    uint64       `json:"alert_events"`
	LastCycle      *CycleResult `json:"last_cycle,omitempty"`
}

// Processor runs the processing loop
type Processor struct {
	config  Config
	c       Components
	logger  *slog.Logger
	metrics *metrics.Metrics

	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration)
	createdAt func(os.FileInfo) time.Time

	state          State
	cycles         uint64
	filesProcessed uint64
	filesFailed    uint64
	alertEvents    uint64
	lastCycle      *CycleResult

	mu sync.RWMutex
}

// NewProcessor creates a new processing driver
func NewProcessor(config Config, c Components, logger *slog.Logger, m *metrics.Metrics) (*Processor, error) {
	if config.AudioDir == "" {
		return nil, fmt.Errorf("audio directory cannot be empty")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", config.PollInterval)
	}
	if config.FreshnessWindow <= 0 {
		return nil, fmt.Errorf("freshness window must be positive, got %v", config.FreshnessWindow)
	}
	if config.Extension == "" {
		config.Extension = ".mp3"
	}
	switch config.DispatchPer {
	case "":
		config.DispatchPer = DispatchPerEvent
	case DispatchPerEvent, DispatchPerTerm:
	default:
		return nil, fmt.Errorf("unknown dispatch policy %q", config.DispatchPer)
	}
	if c.Gate == nil || c.Transcriber == nil || c.Matcher == nil || c.Dispatcher == nil || c.Archiver == nil {
		return nil, fmt.Errorf("all processor components are required")
	}

	return &Processor{
		config:  config,
		c:       c,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		sleep:   sleepContext,
		state:   StateChecking,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Run polls until the time window closes or ctx is cancelled. Both end the
// loop normally and return nil. Cancellation is observed between batches.
func (p *Processor) Run(ctx context.Context) error {
	for {
		p.setState(StateChecking)
		now := p.now()
		p.logger.Debug("Checking transcription window", slog.Time("now", now), slog.Any("window", p.c.Gate))
		if !p.c.Gate.IsOpen(now) {
			p.logger.Info("Outside transcription time, stopping", slog.Time("now", now))
			p.setState(StateDone)
			return nil
		}

		p.setState(StateProcessing)
		// the batch runs to completion even if ctx is cancelled meanwhile
		if _, err := p.RunCycle(context.WithoutCancel(ctx)); err != nil {
			p.logger.Error("Processing cycle failed", slog.String("error", err.Error()))
		}

		if ctx.Err() != nil {
			p.logger.Info("Processing interrupted")
			p.setState(StateDone)
			return nil
		}

		p.setState(StateSleeping)
		p.sleep(ctx, p.config.PollInterval)
		if ctx.Err() != nil {
			p.logger.Info("Processing interrupted")
			p.setState(StateDone)
			return nil
		}
	}
}

// RunCycle lists fresh chunk files and processes them in name order. Per-file
// failures are recorded in the result, not returned. The error is non-nil
// only when the audio directory cannot be listed.
func (p *Processor) RunCycle(ctx context.Context) (CycleResult, error) {
	started := p.now()
	result := CycleResult{ID: uuid.NewString(), StartedAt: started.UTC()}
	logger := p.logger.With(slog.String("cycle", result.ID))

	dirs := scan.DayDirs(p.config.AudioDir, started, p.config.FreshnessWindow)
	files, err := scan.ListRecentIn(dirs, p.config.Extension, p.config.FreshnessWindow, started, p.createdAt)
	if err != nil {
		return result, fmt.Errorf("scan audio files: %w", err)
	}
	p.metrics.RecordCycle(len(files))
	logger.Debug("Found recent files", slog.Int("count", len(files)))

	for _, f := range files {
		res := p.processFile(ctx, logger, f)
		result.Files = append(result.Files, res)
	}

	result.Duration = p.now().Sub(started)
	p.recordCycle(result)
	return result, nil
}

// processFile runs transcribe, match, dispatch and archive for one file
func (p *Processor) processFile(ctx context.Context, logger *slog.Logger, f scan.File) FileResult {
	res := FileResult{Path: f.Path}
	logger = logger.With(slog.String("file", f.Name))
	logger.Info("Transcribing file")

	start := p.now()
	text, err := p.c.Transcriber.Transcribe(ctx, f.Path)
	p.metrics.RecordTranscription(p.now().Sub(start).Seconds(), err == nil)
	if err != nil {
		return p.fail(logger, res, "transcribe", err)
	}

	// The transcript is archived and sent as returned; whitespace only decides emptiness
	res.Text = text
	logger.Info("Transcribed text", slog.String("text", text))
	if strings.TrimSpace(text) == "" {
		logger.Debug("Empty transcript, nothing to search or archive")
		p.recordProcessed(0)
		return res
	}

	detectedAt := p.now()
	res.Events = p.c.Matcher.Scan(text, detectedAt)
	for _, ev := range res.Events {
		p.metrics.RecordAlertEvent(string(ev.Tier))
		logger.Info("Found term",
			slog.String("tier", string(ev.Tier)),
			slog.String("term", ev.Term.Phrase),
			slog.String("matched", ev.MatchedText),
			slog.Int("distance", ev.Distance),
		)
	}
	p.dispatch(text, res.Events)

	if err := p.c.Archiver.Append(text, detectedAt); err != nil {
		return p.fail(logger, res, "archive", err)
	}

	p.recordProcessed(len(res.Events))
	return res
}

// dispatch sends alerts for events according to the dispatch policy
func (p *Processor) dispatch(text string, events []alert.Event) {
	if p.config.DispatchPer == DispatchPerTerm {
		_, terms := alert.Hits(events)
		for _, term := range terms {
			p.c.Dispatcher.Dispatch(text, term.Tier)
		}
		return
	}
	for _, ev := range events {
		p.c.Dispatcher.Dispatch(text, ev.Tier)
	}
}

func (p *Processor) fail(logger *slog.Logger, res FileResult, stage string, err error) FileResult {
	res.Stage = stage
	res.Err = err
	p.metrics.RecordFileFailure(stage)

	p.mu.Lock()
	p.filesFailed++
	p.mu.Unlock()

	logger.Error("Skipping file", slog.String("stage", stage), slog.String("error", err.Error()))
	return res
}

func (p *Processor) recordProcessed(events int) {
	p.mu.Lock()
	p.filesProcessed++
	p.alertEvents += uint64(events)
	p.mu.Unlock()
}

func (p *Processor) recordCycle(result CycleResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cycles++
	p.lastCycle = &result
}

func (p *Processor) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// State returns the current state of the loop
func (p *Processor) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// GetStats returns current processor statistics
func (p *Processor) GetStats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{
		State:          p.state.String(),
		Cycles:         p.cycles,
		FilesProcessed: p.filesProcessed,
		FilesFailed:    p.filesFailed,
		AlertEvents:    p.alertEvents,
	}
	if p.lastCycle != nil {
		last := *p.lastCycle
		stats.LastCycle = &last
	}
	return stats
}
