package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/metrics"
)

// Default message preambles per tier
const (
	DefaultLivePreamble = "This is a LIVE. I've picked up the following:\n"
	DefaultDevPreamble  = "This is a test. I've picked up the following: \n"
)

// DispatcherConfig contains configuration for the dispatcher
type DispatcherConfig struct {
	LivePreamble string
	DevPreamble  string
	SendTimeout  time.Duration
}

// DispatcherStats represents dispatcher statistics
type DispatcherStats struct {
	Dispatched uint64 `json:"dispatched"`
	Sent       uint64 `json:"sent"`
	Failed     uint64 `json:"failed"`
	InFlight   int64  `json:"in_flight"`
}

// Dispatcher sends alert messages to a sink without blocking the caller
type Dispatcher struct {
	sink      Sink
	preambles map[Tier]string
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics

	wg         sync.WaitGroup
	mu         sync.Mutex
	dispatched uint64
	sent       uint64
	failed     uint64
	inFlight   int64
}

// NewDispatcher creates a dispatcher for sink
func NewDispatcher(sink Sink, config DispatcherConfig, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if config.LivePreamble == "" {
		config.LivePreamble = DefaultLivePreamble
	}
	if config.DevPreamble == "" {
		config.DevPreamble = DefaultDevPreamble
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 60 * time.Second
	}

	return &Dispatcher{
		sink: sink,
		preambles: map[Tier]string{
			TierLive: config.LivePreamble,
			TierDev:  config.DevPreamble,
		},
		timeout: config.SendTimeout,
		logger:  logger,
		metrics: m,
	}
}

// Message composes the notification body for text in tier
func (d *Dispatcher) Message(text string, tier Tier) string {
	return d.preambles[tier] + text
}

// Dispatch sends the message for text in the background and returns at once.
// The send is not bound to any caller context; it is limited by the send
// timeout only.
func (d *Dispatcher) Dispatch(text string, tier Tier) {
	message := d.Message(text, tier)

	d.mu.Lock()
	d.dispatched++
	d.inFlight++
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		err := d.sink.Send(ctx, message)

		d.mu.Lock()
		d.inFlight--
		if err != nil {
			d.failed++
		} else {
			d.sent++
		}
		d.mu.Unlock()

		if err != nil {
			d.metrics.RecordAlertSinkError(string(tier))
			d.logger.Warn("Failed to send alert",
				slog.String("tier", string(tier)),
				slog.String("error", err.Error()),
			)
			return
		}
		d.metrics.RecordAlertSent(string(tier))
		d.logger.Info("Alert sent", slog.String("tier", string(tier)))
	}()
}

// Wait blocks until all dispatched sends have finished
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// GetStats returns current dispatcher statistics
func (d *Dispatcher) GetStats() DispatcherStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DispatcherStats{
		Dispatched: d.dispatched,
		Sent:       d.sent,
		Failed:     d.failed,
		InFlight:   d.inFlight,
	}
}
