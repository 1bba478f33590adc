package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStreamStatus is returned when the stream endpoint answers with a non-2xx status.
var ErrStreamStatus = errors.New("unexpected stream status")

// ErrStreamStalled is returned when no data arrives within the read timeout.
var ErrStreamStalled = errors.New("stream stalled")

// StreamConfig contains configuration for the inbound stream
type StreamConfig struct {
	URL            string
	ConnectTimeout time.Duration // dial + response headers
	ReadTimeout    time.Duration // max gap between received blocks, 0 disables
	UserAgent      string
}

// OpenStream issues a GET for the stream URL and returns the response body.
// The body stays bound to ctx: cancelling ctx unblocks a pending Read.
func OpenStream(ctx context.Context, config StreamConfig) (io.ReadCloser, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("stream URL cannot be empty")
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   config.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   config.ConnectTimeout,
			ResponseHeaderTimeout: config.ConnectTimeout,
		},
	}

	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, config.URL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	if config.UserAgent != "" {
		req.Header.Set("User-Agent", config.UserAgent)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stream request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: %d", ErrStreamStatus, resp.StatusCode)
	}

	body := &streamBody{body: resp.Body, cancel: cancel, timeout: config.ReadTimeout}
	if config.ReadTimeout > 0 {
		body.timer = time.AfterFunc(config.ReadTimeout, func() {
			body.stalled.Store(true)
			cancel()
		})
	}
	return body, nil
}

// streamBody wraps the response body with a stall watchdog
type streamBody struct {
	body    io.ReadCloser
	cancel  context.CancelFunc
	timeout time.Duration
	timer   *time.Timer
	stalled atomic.Bool
	once    sync.Once
}

func (s *streamBody) Read(p []byte) (int, error) {
	n, err := s.body.Read(p)
	if n > 0 && s.timer != nil {
		s.timer.Reset(s.timeout)
	}
	if err != nil && s.stalled.Load() {
		return n, fmt.Errorf("%w: no data for %v", ErrStreamStalled, s.timeout)
	}
	return n, err
}

func (s *streamBody) Close() error {
	var err error
	s.once.Do(func() {
		if s.timer != nil {
			s.timer.Stop()
		}
		err = s.body.Close()
		s.cancel()
	})
	return err
}
