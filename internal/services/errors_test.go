package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"kotoba/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "assembly", "render", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"assembly", "render", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{context.Canceled, "cancelled"},
		{fmt.Errorf("run: %w", context.Canceled), "cancelled"},
		{services.Wrap(services.ErrConfiguration, "config", "", "missing key", nil), "configuration"},
		{services.Wrap(services.ErrValidation, "acquire", "", "bad url", nil), "validation"},
		{services.Wrap(services.ErrOversize, "transcribe", "", "413", nil), "oversize"},
		{services.Wrap(services.ErrPhaseFailed, "transcribe", "", "no segments", nil), "phase_failed"},
		{services.Wrap(services.ErrExternalTool, "ffmpeg", "", "", nil), "external_tool"},
		{services.Wrap(services.ErrTransient, "openai", "", "429", nil), "transient"},
		{context.DeadlineExceeded, "transient"},
		{errors.New("mystery"), "unknown"},
	}
	for _, tt := range tests {
		if got := services.Classify(tt.err); got != tt.want {
			t.Fatalf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if services.IsRetryable(nil) {
		t.Fatal("nil should not be retryable")
	}
	if services.IsRetryable(context.Canceled) {
		t.Fatal("cancellation should not be retryable")
	}
	if !services.IsRetryable(services.Wrap(services.ErrTransient, "openai", "chat", "503", nil)) {
		t.Fatal("transient marker should be retryable")
	}
	if services.IsRetryable(services.Wrap(services.ErrOversize, "openai", "transcribe", "413", nil)) {
		t.Fatal("oversize should be handled by splitting, not retry")
	}
}

func TestFailureHintMentionsRemedy(t *testing.T) {
	hint := services.FailureHint(services.Wrap(services.ErrConfiguration, "", "", "", nil))
	if !strings.Contains(hint, "OPENAI_API_KEY") {
		t.Fatalf("unexpected configuration hint %q", hint)
	}
	if services.FailureHint(errors.New("x")) != "check logs for details" {
		t.Fatal("expected default hint")
	}
}
