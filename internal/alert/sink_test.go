package alert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not available")
	}
	path := filepath.Join(t.TempDir(), "notify.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScriptSink(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")
	script := writeScript(t, `printf '%s' "$1" > "`+out+`"`)

	message := DefaultLivePreamble + "we are hiring in data sciense"
	if err := (ScriptSink{Path: script}).Send(context.Background(), message); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != message {
		t.Errorf("Script received %q, want %q", got, message)
	}
}

func TestScriptSinkFailure(t *testing.T) {
	script := writeScript(t, `echo "no such group" >&2; exit 3`)

	err := (ScriptSink{Path: script}).Send(context.Background(), "hello")
	if err == nil {
		t.Fatal("Expected error from failing script")
	}
	if !strings.Contains(err.Error(), "no such group") {
		t.Errorf("Expected script output in error, got %v", err)
	}

	err = (ScriptSink{Path: filepath.Join(t.TempDir(), "missing.sh")}).Send(context.Background(), "hello")
	if err == nil {
		t.Error("Expected error for missing script")
	}
}

type fakeMessageAPI struct {
	calls []*openapi.CreateMessageParams
	fail  map[string]bool
}

func (f *fakeMessageAPI) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.calls = append(f.calls, params)
	if f.fail[*params.To] {
		return nil, errors.New("invalid number")
	}
	return &openapi.ApiV2010Message{}, nil
}

func TestTwilioSink(t *testing.T) {
	api := &fakeMessageAPI{fail: map[string]bool{"+4900000": true}}
	sink, err := NewTwilioSinkWithAPI(api, "+4912345", []string{"+4911111", "+4900000", "+4922222"})
	if err != nil {
		t.Fatalf("NewTwilioSinkWithAPI failed: %v", err)
	}

	err = sink.Send(context.Background(), "alert body")
	if err == nil || !strings.Contains(err.Error(), "+4900000") {
		t.Errorf("Expected error naming failed recipient, got %v", err)
	}

	if len(api.calls) != 3 {
		t.Fatalf("Expected a message per recipient, got %d", len(api.calls))
	}
	for _, p := range api.calls {
		if *p.From != "+4912345" || *p.Body != "alert body" {
			t.Errorf("Unexpected params from=%s body=%s", *p.From, *p.Body)
		}
	}
}

func TestTwilioSinkValidation(t *testing.T) {
	if _, err := NewTwilioSinkWithAPI(&fakeMessageAPI{}, "", []string{"+49"}); err == nil {
		t.Error("Expected error for missing sender")
	}
	if _, err := NewTwilioSinkWithAPI(&fakeMessageAPI{}, "+49", nil); err == nil {
		t.Error("Expected error for missing recipients")
	}
	if _, err := NewTwilioSink("", "", "+49", []string{"+49"}); err == nil {
		t.Error("Expected error for missing credentials")
	}
}

func TestMultiSink(t *testing.T) {
	first := &recordingSink{}
	failing := SinkFunc(func(context.Context, string) error { return errors.New("down") })
	last := &recordingSink{}

	err := MultiSink{first, failing, last}.Send(context.Background(), "msg")
	if err == nil {
		t.Error("Expected joined error")
	}
	if len(first.Messages()) != 1 || len(last.Messages()) != 1 {
		t.Error("Expected every sink to receive the message")
	}
}
