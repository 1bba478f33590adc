package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sink delivers a notification message
type Sink interface {
	Send(ctx context.Context, message string) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, message string) error

// Send calls f
func (f SinkFunc) Send(ctx context.Context, message string) error {
	return f(ctx, message)
}

// LogSink only logs messages
type LogSink struct {
	Logger *slog.Logger
}

// Send logs the message
func (s LogSink) Send(_ context.Context, message string) error {
	s.Logger.Info("Alert", slog.String("message", message))
	return nil
}

// ScriptSink runs an executable with the message as its only argument,
// e.g. a wrapper around signal-cli that posts to a group.
type ScriptSink struct {
	Path string
}

// Send runs the script and waits for it to exit
func (s ScriptSink) Send(ctx context.Context, message string) error {
	cmd := exec.CommandContext(ctx, s.Path, message)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		out := strings.TrimSpace(output.String())
		if out != "" {
			return fmt.Errorf("notification script %s failed: %w: %s", s.Path, err, out)
		}
		return fmt.Errorf("notification script %s failed: %w", s.Path, err)
	}
	return nil
}

// MessageCreator is the part of the Twilio REST API used for SMS
type MessageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioSink sends the message as SMS to every recipient
type TwilioSink struct {
	api  MessageCreator
	from string
	to   []string
}

// NewTwilioSink creates an SMS sink using account credentials
func NewTwilioSink(accountSID, authToken, from string, to []string) (*TwilioSink, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("twilio account SID and auth token are required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return NewTwilioSinkWithAPI(client.Api, from, to)
}

// NewTwilioSinkWithAPI creates an SMS sink on top of an existing API client
func NewTwilioSinkWithAPI(api MessageCreator, from string, to []string) (*TwilioSink, error) {
	if from == "" {
		return nil, fmt.Errorf("twilio sender number is required")
	}
	if len(to) == 0 {
		return nil, fmt.Errorf("at least one twilio recipient is required")
	}
	return &TwilioSink{api: api, from: from, to: to}, nil
}

// Send creates one message per recipient. The Twilio client does not take a
// context, so cancellation is only checked between recipients.
func (s *TwilioSink) Send(ctx context.Context, message string) error {
	var errs []error
	for _, to := range s.to {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		params := &openapi.CreateMessageParams{}
		params.SetTo(to)
		params.SetFrom(s.from)
		params.SetBody(message)

		if _, err := s.api.CreateMessage(params); err != nil {
			errs = append(errs, fmt.Errorf("sms to %s: %w", to, err))
		}
	}
	return errors.Join(errs...)
}

// MultiSink sends to every sink and joins their errors
type MultiSink []Sink

// Send delivers message to all sinks in order
func (m MultiSink) Send(ctx context.Context, message string) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
