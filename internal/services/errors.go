package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient failure")
	ErrOversize      = errors.New("request too large or unreadable")
	ErrPhaseFailed   = errors.New("phase produced no usable output")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to a short label used for metrics and the run summary.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrOversize):
		return "oversize"
	case errors.Is(err, ErrPhaseFailed):
		return "phase_failed"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return "transient"
	default:
		return "unknown"
	}
}

// IsRetryable reports whether err is worth retrying at the item or chunk level.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}

// FailureHint returns a short remediation hint for a pipeline failure.
func FailureHint(err error) string {
	switch Classify(err) {
	case "configuration":
		return "set openai.api_key (or OPENAI_API_KEY) and rerun"
	case "validation":
		return "check the input file path or URL"
	case "external_tool":
		return "run 'kotoba deps' to verify ffmpeg, ffprobe, and yt-dlp"
	case "phase_failed":
		return "the remote service returned nothing usable; inspect the log for per-chunk errors"
	case "transient":
		return "the remote service is rate limiting or unavailable; retry later"
	case "cancelled":
		return "run was interrupted; partial outputs were removed"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
