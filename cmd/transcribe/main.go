package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/alert"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/archive"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/config"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/logging"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/metrics"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/pipeline"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/server"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	processName       = "transcribe"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to .env file with secrets")
	flag.Parse()

	if err := config.LoadEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load environment: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	if err := cfg.ValidateProcessing(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	logger, logCloser, err := logging.New(cfg.Logging, processName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		return 1
	}
	defer logCloser.Close()

	logger.Info("Started",
		slog.String("config_path", *configPath),
		slog.String("backend", cfg.Transcription.Backend),
		slog.String("model", cfg.Transcription.Model),
	)

	for _, w := range cfg.Warnings() {
		logger.Warn("Configuration warning", slog.String("warning", w))
	}

	gate, err := cfg.ProcessingGate()
	if err != nil {
		logger.Error("Invalid transcription window", slog.String("error", err.Error()))
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(reg)

	transcriber, err := transcription.New(ctx, transcription.Config{
		Backend:     cfg.Transcription.Backend,
		Endpoint:    cfg.Transcription.Endpoint,
		APIKey:      cfg.Transcription.APIKey,
		Model:       cfg.Transcription.Model,
		Language:    cfg.Transcription.Language,
		Prompt:      cfg.Transcription.Prompt,
		Timeout:     cfg.Transcription.GetTimeoutDuration(),
		MaxFileSize: cfg.Transcription.GetMaxFileSize(),
	})
	if err != nil {
		logger.Error("Failed to create transcription backend", slog.String("error", err.Error()))
		return 1
	}

	matcher, err := alert.NewMatcher(cfg.Alerts.Terms())
	if err != nil {
		logger.Error("Invalid alert terms", slog.String("error", err.Error()))
		return 1
	}

	sink, err := newSink(cfg.Notify, logger)
	if err != nil {
		logger.Error("Failed to create notification sink", slog.String("error", err.Error()))
		return 1
	}
	dispatcher := alert.NewDispatcher(sink, alert.DispatcherConfig{
		LivePreamble: cfg.Alerts.LivePreamble,
		DevPreamble:  cfg.Alerts.DevPreamble,
		SendTimeout:  cfg.Alerts.GetSendTimeoutDuration(),
	}, logger, appMetrics)

	archiver, err := archive.NewArchiver(cfg.Storage.TextDir, appMetrics)
	if err != nil {
		logger.Error("Failed to create archiver", slog.String("error", err.Error()))
		return 1
	}

	processor, err := pipeline.NewProcessor(pipeline.Config{
		AudioDir:        cfg.Storage.AudioDir,
		Extension:       cfg.Storage.Extension,
		PollInterval:    cfg.Processing.GetPollIntervalDuration(),
		FreshnessWindow: cfg.Processing.GetFreshnessWindowDuration(),
		DispatchPer:     cfg.Alerts.DispatchPer,
	}, pipeline.Components{
		Gate:        gate,
		Transcriber: transcriber,
		Matcher:     matcher,
		Dispatcher:  dispatcher,
		Archiver:    archiver,
	}, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create processor", slog.String("error", err.Error()))
		return 1
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal, finishing current batch", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.HTTP.Enabled {
		httpServer := server.NewHTTPServer(server.HTTPServerConfig{
			Address: cfg.HTTP.Address,
			Port:    cfg.HTTP.TranscribePort,
			Service: processName,
		}, logger, cfg, gate, reg, appMetrics)
		httpServer.Register("processor", func() any { return processor.GetStats() })
		httpServer.Register("transcription", func() any { return transcriber.Stats() })
		httpServer.Register("alerts", func() any { return dispatcher.GetStats() })
		httpServer.Register("archive", func() any { return archiver.GetStats() })

		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			return 1
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := httpServer.Stop(shutdownCtx); err != nil {
				logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("Processing window",
		slog.String("window", gate.String()),
		slog.String("local_time", gate.Local(time.Now()).Format("15:04:05")),
	)

	if err := processor.Run(ctx); err != nil {
		logger.Error("Processing failed", slog.String("error", err.Error()))
		return 1
	}

	// let in-flight alerts finish; each is bounded by the send timeout
	dispatcher.Wait()

	stats := processor.GetStats()
	logger.Info("Final processing statistics",
		slog.Uint64("cycles", stats.Cycles),
		slog.Uint64("files_processed", stats.FilesProcessed),
		slog.Uint64("files_failed", stats.FilesFailed),
		slog.Uint64("alert_events", stats.AlertEvents),
	)
	logger.Info("OK: finished transcription")
	return 0
}

// newSink builds the notification sink from configuration
func newSink(cfg config.NotifyConfig, logger *slog.Logger) (alert.Sink, error) {
	var sinks alert.MultiSink
	for _, name := range cfg.Sinks {
		switch name {
		case "log":
			sinks = append(sinks, alert.LogSink{Logger: logger})
		case "script":
			sinks = append(sinks, alert.ScriptSink{Path: cfg.Script.Path})
		case "twilio":
			sink, err := alert.NewTwilioSink(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From, cfg.Twilio.To)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, sink)
		default:
			return nil, fmt.Errorf("unknown sink %q", name)
		}
	}

	switch len(sinks) {
	case 0:
		return alert.LogSink{Logger: logger}, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}
