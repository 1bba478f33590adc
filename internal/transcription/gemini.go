package transcription

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	defaultGeminiModel = "gemini-2.0-flash"

	// geminiInlineLimit bounds the request size for inline audio data
	geminiInlineLimit = 20 << 20

	geminiPrompt = "Transcribe this audio verbatim. Return only the spoken words " +
		"as plain text, without timestamps, speaker labels or commentary. " +
		"Return an empty response if nothing is spoken."
)

// GeminiBackend transcribes chunks by sending the audio inline to a Gemini model
type GeminiBackend struct {
	config Config
	client *genai.Client

	requestStats
}

// NewGeminiBackend creates a Gemini API client
func NewGeminiBackend(ctx context.Context, config Config) (*GeminiBackend, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	if config.Model == "" {
		config.Model = defaultGeminiModel
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = geminiInlineLimit
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: config.Timeout},
	}
	if config.Endpoint != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.Endpoint}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiBackend{
		config:       config,
		client:       client,
		requestStats: requestStats{backend: BackendGemini, model: config.Model},
	}, nil
}

// Transcribe sends the chunk at path to the model and returns the recognised text
func (b *GeminiBackend) Transcribe(ctx context.Context, path string) (string, error) {
	if _, err := validateChunk(path, b.config.MaxFileSize); err != nil {
		b.recordRejected()
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read chunk: %w", err)
	}

	prompt := geminiPrompt
	if b.config.Prompt != "" {
		prompt = b.config.Prompt
	}
	if b.config.Language != "" {
		prompt += " The audio is in language " + b.config.Language + "."
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(data, "audio/mpeg"),
		}, genai.RoleUser),
	}

	startTime := time.Now()
	resp, err := b.client.Models.GenerateContent(ctx, b.config.Model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		err = fmt.Errorf("gemini transcription failed: %w", err)
	}
	b.recordResult(time.Since(startTime), err)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}
