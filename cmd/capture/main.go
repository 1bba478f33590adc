package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/capture"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/config"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/logging"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/metrics"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/server"
)

const (
	defaultConfigPath = "configs/config.yaml"
	processName       = "save_stream"
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
	if err := cfg.ValidateCapture(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	logger, logCloser, err := logging.New(cfg.Logging, processName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		return 1
	}
	defer logCloser.Close()

	logger = logger.With(slog.String("run", uuid.NewString()))
	logger.Info("Started main", slog.String("config_path", *configPath))

	for _, w := range cfg.Warnings() {
		logger.Warn("Configuration warning", slog.String("warning", w))
	}


	gate, err := cfg.CaptureGate()
	if err != nil {
		logger.Error("Invalid recording window", slog.String("error", err.Error()))
		return 1
	}

	now := time.Now()
	logger.Info("Checking recording time",
		slog.String("local_time", gate.Local(now).Format("15:04:05")),
		slog.String("window", gate.String()),
	)
	if !gate.IsOpen(now) {
		logger.Warn("Not during recording time")
		return 0
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(reg)

	recorder, err := capture.NewRecorder(capture.Config{
		Dir:           cfg.Storage.AudioDir,
		Prefix:        "stream_",
		Extension:     cfg.Storage.Extension,
		ChunkDuration: cfg.Capture.GetChunkDuration(),
		BlockSize:     cfg.Capture.BlockSize,
	}, gate, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create recorder", slog.String("error", err.Error()))
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(server.HTTPServerConfig{
			Address: cfg.HTTP.Address,
			Port:    cfg.HTTP.CapturePort,
			Service: processName,
		}, logger, cfg, gate, reg, appMetrics)
		httpServer.Register("recorder", func() any { return recorder.GetStats() })

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

	stream, err := capture.OpenStream(ctx, capture.StreamConfig{
		URL:            cfg.Stream.URL,
		ConnectTimeout: cfg.Stream.GetConnectTimeoutDuration(),
		ReadTimeout:    cfg.Stream.GetReadTimeoutDuration(),
		UserAgent:      cfg.Stream.UserAgent,
	})
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("Interrupted before the stream was opened")
			return 0
		}
		logger.Error("Failed to open stream", slog.String("url", cfg.Stream.URL), slog.String("error", err.Error()))
		return 1
	}
	defer stream.Close()

	err = recorder.Record(ctx, stream)

	stats := recorder.GetStats()
	logger.Info("Final capture statistics",
		slog.Uint64("chunks_closed", stats.ChunksClosed),
		slog.Uint64("rotations", stats.Rotations),
		slog.Int64("bytes_written", stats.BytesWritten),
	)

	switch {
	case err == nil:
		logger.Info("OK: finished recording")
		return 0
	case errors.Is(err, capture.ErrWindowClosed):
		logger.Warn("Not during recording time")
		return 0
	default:
		logger.Error("Recording failed", slog.String("error", err.Error()))
		return 1
	}
}
