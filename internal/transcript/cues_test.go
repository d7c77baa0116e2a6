package transcript_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"kotoba/internal/transcript"
)

func TestParseCueTime(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"00:00:01,500", 1500 * time.Millisecond},
		{"01:01:01.000", time.Hour + time.Minute + time.Second},
		{" 00:10:00,050 ", 10*time.Minute + 50*time.Millisecond},
	}
	for _, tc := range tests {
		got, err := transcript.ParseCueTime(tc.value)
		if err != nil {
			t.Fatalf("ParseCueTime(%q): %v", tc.value, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCueTime(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
	for _, bad := range []string{"", "00:01", "00:00:01", "aa:00:01,000"} {
		if _, err := transcript.ParseCueTime(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestExportedCuesValidate(t *testing.T) {
	for _, format := range []transcript.Format{transcript.FormatSRT, transcript.FormatVTT} {
		var buf bytes.Buffer
		if err := transcript.Export(&buf, sample(), format); err != nil {
			t.Fatalf("Export %s: %v", format, err)
		}
		if issues := transcript.ValidateCues(buf.String(), 2*time.Hour); len(issues) != 0 {
			t.Fatalf("%s: unexpected issues %v", format, issues)
		}
	}
}

func TestValidateCuesReportsIssues(t *testing.T) {
	if issues := transcript.ValidateCues("WEBVTT\n\n", 0); len(issues) != 1 || issues[0] != "empty_subtitle_file" {
		t.Fatalf("unexpected issues for empty file: %v", issues)
	}

	content := "1\n00:00:05,000 --> 00:00:06,000\na\n\n" +
		"2\n00:00:05,000 --> 00:00:04,000\nb\n\n" +
		"3\n00:00:xx,000 --> 00:00:09,000\nc\n\n"
	issues := strings.Join(transcript.ValidateCues(content, 5*time.Second), "\n")
	for _, want := range []string{"timestamp_parse_error: 1 cues", "cue_ends_before_start: cue 2", "cue_out_of_order: cue 2", "cue_past_end"} {
		if !strings.Contains(issues, want) {
			t.Fatalf("expected %q in issues:\n%s", want, issues)
		}
	}
}
