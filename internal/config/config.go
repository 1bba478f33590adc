package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/alert"
	"github.com/mc51/audio-stream-transcription-monitoring-and-alerting/internal/window"
)

// Config represents the complete configuration shared by both binaries
type Config struct {
	Timezone      string              `yaml:"timezone"`
	Stream        StreamConfig        `yaml:"stream"`
	Capture       CaptureConfig       `yaml:"capture"`
	Processing    ProcessingConfig    `yaml:"processing"`
	Storage       StorageConfig       `yaml:"storage"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Alerts        AlertsConfig        `yaml:"alerts"`
	Notify        NotifyConfig        `yaml:"notify"`
	Logging       LoggingConfig       `yaml:"logging"`
	HTTP          HTTPConfig          `yaml:"http"`
}

// StreamConfig contains the inbound audio stream settings
type StreamConfig struct {
	URL            string `yaml:"url"`
	ConnectTimeout int    `yaml:"connect_timeout"` // seconds
	ReadTimeout    int    `yaml:"read_timeout"`    // seconds, 0 disables the stall check
	UserAgent      string `yaml:"user_agent"`
}

// CaptureConfig contains the recording window and chunking parameters
type CaptureConfig struct {
	From          string `yaml:"from"` // HH:MM local time
	To            string `yaml:"to"`
	ChunkDuration int    `yaml:"chunk_duration"` // seconds
	BlockSize     int    `yaml:"block_size"`     // bytes
}

// ProcessingConfig contains the transcription window and polling parameters
type ProcessingConfig struct {
	From            string `yaml:"from"`
	To              string `yaml:"to"`
	PollInterval    int    `yaml:"poll_interval"`    // seconds
	FreshnessWindow int    `yaml:"freshness_window"` // seconds
}

// StorageConfig contains the shared filesystem layout
type StorageConfig struct {
	AudioDir  string `yaml:"audio_dir"`
	TextDir   string `yaml:"text_dir"`
	Extension string `yaml:"extension"`
}

// TranscriptionConfig contains speech-to-text backend configuration
type TranscriptionConfig struct {
	Backend       string `yaml:"backend"` // openai, gemini or http
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Language      string `yaml:"language"`
	Prompt        string `yaml:"prompt"`
	Timeout       int    `yaml:"timeout"`          // seconds
	MaxFileSizeMB int    `yaml:"max_file_size_mb"` // 0 uses the backend limit
}

// TermConfig is an alert phrase with an optional distance override.
// In YAML it is either a plain string or a mapping.
type TermConfig struct {
	Phrase      string `yaml:"phrase"`
	MaxDistance *int   `yaml:"max_distance"`
}

// UnmarshalYAML accepts a bare phrase as shorthand
func (t *TermConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		t.Phrase = value.Value
		t.MaxDistance = nil
		return nil
	}
	type plain TermConfig
	return value.Decode((*plain)(t))
}

// AlertsConfig contains alert terms, tolerances and message settings
type AlertsConfig struct {
	LiveMaxDistance int          `yaml:"live_max_distance"`
	DevMaxDistance  int          `yaml:"dev_max_distance"`
	Live            []TermConfig `yaml:"live"`
	Dev             []TermConfig `yaml:"dev"`
	LivePreamble    string       `yaml:"live_preamble"`
	DevPreamble     string       `yaml:"dev_preamble"`
	DispatchPer     string       `yaml:"dispatch_per"` // event or term
	SendTimeout     int          `yaml:"send_timeout"` // seconds
}

// NotifyConfig selects and configures notification sinks
type NotifyConfig struct {
	Sinks  []string     `yaml:"sinks"` // script, twilio, log
	Script ScriptConfig `yaml:"script"`
	Twilio TwilioConfig `yaml:"twilio"`
}

// ScriptConfig contains the notification script settings
type ScriptConfig struct {
	Path string `yaml:"path"`
}

// TwilioConfig contains SMS notification settings
type TwilioConfig struct {
	AccountSID string   `yaml:"account_sid"`
	AuthToken  string   `yaml:"auth_token"`
	From       string   `yaml:"from"`
	To         []string `yaml:"to"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Output is stdout, stderr or a file path. {name} and {date} in a path
	// are replaced by the process name and the UTC date.
	Output string `yaml:"output"`
}

// HTTPConfig contains the optional status server configuration
type HTTPConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Address        string `yaml:"address"`
	CapturePort    int    `yaml:"capture_port"`
	TranscribePort int    `yaml:"transcribe_port"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Timezone: "Europe/Berlin",
		Stream: StreamConfig{
			ConnectTimeout: 30,
			ReadTimeout:    60,
			UserAgent:      "radio-monitor/1.0",
		},
		Capture: CaptureConfig{
			From:          "05:55",
			To:            "19:00",
			ChunkDuration: 30,
			BlockSize:     1024,
		},
		Processing: ProcessingConfig{
			From:            "05:55",
			To:              "19:15",
			PollInterval:    10,
			FreshnessWindow: 60,
		},
		Storage: StorageConfig{
			AudioDir:  "audio",
			TextDir:   "text",
			Extension: ".mp3",
		},
		Transcription: TranscriptionConfig{
			Backend:  "openai",
			Model:    "whisper-1",
			Language: "de",
			Timeout:  120,
		},
		Alerts: AlertsConfig{
			LiveMaxDistance: 2,
			DevMaxDistance:  1,
			Live:            []TermConfig{{Phrase: "Data Science"}, {Phrase: "Data Engineering"}},
			Dev:             []TermConfig{{Phrase: "Data Analytics"}},
			LivePreamble:    alert.DefaultLivePreamble,
			DevPreamble:     alert.DefaultDevPreamble,
			DispatchPer:     "event",
			SendTimeout:     60,
		},
		Notify: NotifyConfig{
			Sinks: []string{"log"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "logs/{name}_{date}.log",
		},
		HTTP: HTTPConfig{
			Enabled:        false,
			Address:        "127.0.0.1",
			CapturePort:    9101,
			TranscribePort: 9102,
		},
	}
}

// LoadEnv loads variables from the given .env files into the process
// environment. Missing files are ignored and existing variables win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// Load reads and parses the configuration file on top of Default.
// ${VAR} references are expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks the sections both processes share. Process-specific
// requirements are checked by ValidateCapture and ValidateProcessing.
func (c *Config) Validate() error {
	if c.Timezone == "" {
		return fmt.Errorf("timezone cannot be empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream config: %w", err)
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Processing.Validate(); err != nil {
		return fmt.Errorf("processing config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Alerts.Validate(); err != nil {
		return fmt.Errorf("alerts config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	return nil
}

// ValidateCapture checks what only the capture process needs on top of Validate
func (c *Config) ValidateCapture() error {
	if c.Stream.URL == "" {
		return fmt.Errorf("stream config: url is required for capture")
	}
	return nil
}

// ValidateProcessing checks the transcription backend and notification sinks,
// which carry the secrets only the processing process uses.
func (c *Config) ValidateProcessing() error {
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Notify.Validate(); err != nil {
		return fmt.Errorf("notify config: %w", err)
	}

	return nil
}

// Warnings returns non-fatal configuration problems
func (c *Config) Warnings() []string {
	var warnings []string

	minWindow := c.Processing.GetPollIntervalDuration() + c.Capture.GetChunkDuration()
	if c.Processing.GetFreshnessWindowDuration() <= minWindow {
		warnings = append(warnings, fmt.Sprintf(
			"freshness_window %v does not exceed poll_interval + chunk_duration (%v): chunks may be missed",
			c.Processing.GetFreshnessWindowDuration(), minWindow))
	}
	return warnings
}

// Location returns the configured time zone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// CaptureGate returns the gate for the recording window
func (c *Config) CaptureGate() (*window.Gate, error) {
	return c.gate(c.Capture.From, c.Capture.To)
}

// ProcessingGate returns the gate for the transcription window
func (c *Config) ProcessingGate() (*window.Gate, error) {
	return c.gate(c.Processing.From, c.Processing.To)
}

func (c *Config) gate(from, to string) (*window.Gate, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	f, err := window.ParseTimeOfDay(from)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	t, err := window.ParseTimeOfDay(to)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	return window.NewGate(f, t, loc)
}

func validateWindow(from, to string) error {
	f, err := window.ParseTimeOfDay(from)
	if err != nil {
		return fmt.Errorf("from: %w", err)
	}
	t, err := window.ParseTimeOfDay(to)
	if err != nil {
		return fmt.Errorf("to: %w", err)
	}
	if f >= t {
		return fmt.Errorf("from (%s) must be before to (%s)", from, to)
	}
	return nil
}

// Validate validates stream configuration. The URL is only required by the
// capture process and is checked by ValidateCapture.
func (s *StreamConfig) Validate() error {
	if s.ConnectTimeout < 1 {
		return fmt.Errorf("connect_timeout must be at least 1 second, got %d", s.ConnectTimeout)
	}
	if s.ReadTimeout < 0 {
		return fmt.Errorf("read_timeout cannot be negative, got %d", s.ReadTimeout)
	}
	if s.URL != "" && !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
		return fmt.Errorf("url must be http or https, got %q", s.URL)
	}
	return nil
}

// Validate validates capture configuration
func (c *CaptureConfig) Validate() error {
	if err := validateWindow(c.From, c.To); err != nil {
		return err
	}
	// File names have second resolution
	if c.ChunkDuration < 1 {
		return fmt.Errorf("chunk_duration must be at least 1 second, got %d", c.ChunkDuration)
	}
	if c.BlockSize < 1 {
		return fmt.Errorf("block_size must be positive, got %d", c.BlockSize)
	}
	return nil
}

// Validate validates processing configuration
func (p *ProcessingConfig) Validate() error {
	if err := validateWindow(p.From, p.To); err != nil {
		return err
	}
	if p.PollInterval < 1 {
		return fmt.Errorf("poll_interval must be at least 1 second, got %d", p.PollInterval)
	}
	if p.FreshnessWindow < 1 {
		return fmt.Errorf("freshness_window must be at least 1 second, got %d", p.FreshnessWindow)
	}
	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	if s.AudioDir == "" {
		return fmt.Errorf("audio_dir cannot be empty")
	}
	if s.TextDir == "" {
		return fmt.Errorf("text_dir cannot be empty")
	}
	if !strings.HasPrefix(s.Extension, ".") {
		return fmt.Errorf("extension must start with a dot, got %q", s.Extension)
	}
	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	switch t.Backend {
	case "openai", "gemini":
		if t.APIKey == "" {
			return fmt.Errorf("api_key cannot be empty for backend %s", t.Backend)
		}
	case "http":
		if t.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty for backend http")
		}
	default:
		return fmt.Errorf("backend must be one of [openai, gemini, http], got '%s'", t.Backend)
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}
	if t.MaxFileSizeMB < 0 {
		return fmt.Errorf("max_file_size_mb cannot be negative, got %d", t.MaxFileSizeMB)
	}
	return nil
}

// Validate validates alert configuration
func (a *AlertsConfig) Validate() error {
	if a.LiveMaxDistance < 0 || a.DevMaxDistance < 0 {
		return fmt.Errorf("max distances cannot be negative")
	}
	if len(a.Live)+len(a.Dev) == 0 {
		return fmt.Errorf("at least one alert term is required")
	}
	if a.DispatchPer != "event" && a.DispatchPer != "term" {
		return fmt.Errorf("dispatch_per must be 'event' or 'term', got '%s'", a.DispatchPer)
	}
	if a.SendTimeout < 1 {
		return fmt.Errorf("send_timeout must be at least 1 second, got %d", a.SendTimeout)
	}
	if _, err := alert.NewMatcher(a.Terms()); err != nil {
		return err
	}
	return nil
}

// Terms returns live terms followed by dev terms with tier tolerances applied
func (a *AlertsConfig) Terms() []alert.Term {
	terms := make([]alert.Term, 0, len(a.Live)+len(a.Dev))
	add := func(list []TermConfig, tier alert.Tier, tolerance int) {
		for _, tc := range list {
			d := tolerance
			if tc.MaxDistance != nil {
				d = *tc.MaxDistance
			}
			terms = append(terms, alert.Term{Phrase: tc.Phrase, Tier: tier, MaxDistance: d})
		}
	}
	add(a.Live, alert.TierLive, a.LiveMaxDistance)
	add(a.Dev, alert.TierDev, a.DevMaxDistance)
	return terms
}

// Validate validates notification configuration
func (n *NotifyConfig) Validate() error {
	for _, sink := range n.Sinks {
		switch sink {
		case "log":
		case "script":
			if n.Script.Path == "" {
				return fmt.Errorf("script.path cannot be empty when the script sink is enabled")
			}
		case "twilio":
			if n.Twilio.AccountSID == "" || n.Twilio.AuthToken == "" {
				return fmt.Errorf("twilio account_sid and auth_token are required")
			}
			if n.Twilio.From == "" || len(n.Twilio.To) == 0 {
				return fmt.Errorf("twilio from and to are required")
			}
		default:
			return fmt.Errorf("unknown sink '%s', must be one of [log, script, twilio]", sink)
		}
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	if l.Output == "" {
		return fmt.Errorf("output cannot be empty")
	}
	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if !h.Enabled {
		return nil
	}
	if h.Address == "" {
		return fmt.Errorf("http address cannot be empty when HTTP is enabled")
	}
	for name, port := range map[string]int{"capture_port": h.CapturePort, "transcribe_port": h.TranscribePort} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
		}
	}
	if h.CapturePort == h.TranscribePort {
		return fmt.Errorf("capture_port and transcribe_port must differ")
	}
	return nil
}

// GetConnectTimeoutDuration returns the connect timeout as a time.Duration
func (s *StreamConfig) GetConnectTimeoutDuration() time.Duration {
	return time.Duration(s.ConnectTimeout) * time.Second
}

// GetReadTimeoutDuration returns the stall timeout as a time.Duration
func (s *StreamConfig) GetReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetChunkDuration returns the chunk rotation threshold as a time.Duration
func (c *CaptureConfig) GetChunkDuration() time.Duration {
	return time.Duration(c.ChunkDuration) * time.Second
}

// GetPollIntervalDuration returns the poll interval as a time.Duration
func (p *ProcessingConfig) GetPollIntervalDuration() time.Duration {
	return time.Duration(p.PollInterval) * time.Second
}

// GetFreshnessWindowDuration returns the freshness window as a time.Duration
func (p *ProcessingConfig) GetFreshnessWindowDuration() time.Duration {
	return time.Duration(p.FreshnessWindow) * time.Second
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetMaxFileSize returns the upload limit in bytes, 0 meaning the backend default
func (t *TranscriptionConfig) GetMaxFileSize() int64 {
	return int64(t.MaxFileSizeMB) << 20
}

// GetSendTimeoutDuration returns the notification timeout as a time.Duration
func (a *AlertsConfig) GetSendTimeoutDuration() time.Duration {
	return time.Duration(a.SendTimeout) * time.Second
}
