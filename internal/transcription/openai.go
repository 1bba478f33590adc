package transcription

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// openAIMaxFileSize is the upload limit of the hosted transcription endpoint
const openAIMaxFileSize = 25 << 20

// OpenAIBackend transcribes chunks with the hosted Whisper API
type OpenAIBackend struct {
	config Config
	client *openai.Client

	requestStats
}

// NewOpenAIBackend creates a Whisper API client. Endpoint, when set, replaces
// the API base URL, which also allows any OpenAI-compatible server.
func NewOpenAIBackend(config Config) (*OpenAIBackend, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	if config.Model == "" {
		config.Model = openai.Whisper1
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = openAIMaxFileSize
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.Endpoint != "" {
		clientConfig.BaseURL = config.Endpoint
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &OpenAIBackend{
		config:       config,
		client:       openai.NewClientWithConfig(clientConfig),
		requestStats: requestStats{backend: BackendOpenAI, model: config.Model},
	}, nil
}

// Transcribe uploads the chunk at path and returns the recognised text
func (b *OpenAIBackend) Transcribe(ctx context.Context, path string) (string, error) {
	if _, err := validateChunk(path, b.config.MaxFileSize); err != nil {
		b.recordRejected()
		return "", err
	}

	req := openai.AudioRequest{
		Model:       b.config.Model,
		FilePath:    path,
		Prompt:      b.config.Prompt,
		Temperature: 0,
		Language:    b.config.Language,
		Format:      openai.AudioResponseFormatJSON,
	}

	startTime := time.Now()
	resp, err := b.client.CreateTranscription(ctx, req)
	if err != nil {
		err = fmt.Errorf("openai transcription failed: %w", err)
	}
	b.recordResult(time.Since(startTime), err)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
