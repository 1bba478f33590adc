package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HTTPBackend sends chunks to a self-hosted whisper server as multipart form data
type HTTPBackend struct {
	config     Config
	httpClient *http.Client

	requestStats
}

// transcriptionResponse is the JSON reply of the whisper server
type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// NewHTTPBackend creates a new whisper server client
func NewHTTPBackend(config Config) (*HTTPBackend, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}

	if config.Model == "" {
		config.Model = "whisper-1"
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &HTTPBackend{
		config:       config,
		httpClient:   httpClient,
		requestStats: requestStats{backend: BackendHTTP, model: config.Model},
	}, nil
}

// Transcribe uploads the chunk at path and returns the recognised text
func (c *HTTPBackend) Transcribe(ctx context.Context, path string) (string, error) {
	if _, err := validateChunk(path, c.config.MaxFileSize); err != nil {
		c.recordRejected()
		return "", err
	}

	startTime := time.Now()
	text, err := c.doRequest(ctx, path)
	c.recordResult(time.Since(startTime), err)
	if err != nil {
		return "", err
	}
	return text, nil
}

// doRequest performs a single HTTP request to the whisper server
func (c *HTTPBackend) doRequest(ctx context.Context, path string) (string, error) {
	body, contentType, err := c.createMultipartRequest(path)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "radio-monitor/1.0")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var transcriptionResp transcriptionResponse
	if err := json.Unmarshal(respBody, &transcriptionResp); err != nil {
		return "", fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return transcriptionResp.Text, nil
}

// createMultipartRequest creates a multipart/form-data body holding the chunk file
func (c *HTTPBackend) createMultipartRequest(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open chunk: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fileWriter, f); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := [][2]string{
		{"model", c.config.Model},
		{"response_format", "json"},
		{"temperature", "0"},
	}
	if c.config.Language != "" {
		fields = append(fields, [2]string{"language", c.config.Language})
	}
	if c.config.Prompt != "" {
		fields = append(fields, [2]string{"prompt", c.config.Prompt})
	}

	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", field[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
