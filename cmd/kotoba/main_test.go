package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kotoba/internal/cache"
	"kotoba/internal/services"
	"kotoba/internal/testsupport"
	"kotoba/internal/transcript"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestConvertRequiresAPIKey(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIKey(""))

	_, _, err := runCLI(t, []string{"convert", "lecture.mp3"}, env.configPath)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestConvertRequiresInput(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"convert"}, env.configPath); err == nil {
		t.Fatal("expected missing argument error")
	}
}

func TestApplyConvertFlags(t *testing.T) {
	env := setupCLITestEnv(t)
	cmd := newConvertCommand(newCommandContext(new(string)))
	if err := cmd.ParseFlags([]string{"--separate-files", "--no-parallel", "--openai-key", " sk-flag ", "--output", filepath.Join(t.TempDir(), "out")}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	flags := convertFlags{separateFiles: true, noParallel: true, apiKey: " sk-flag ", outputDir: cmd.Flag("output").Value.String()}

	if err := applyConvertFlags(env.cfg, cmd, flags); err != nil {
		t.Fatalf("applyConvertFlags: %v", err)
	}
	if !env.cfg.Output.SeparateFiles || env.cfg.Output.KeepTranscript {
		t.Fatalf("unexpected output settings: %+v", env.cfg.Output)
	}
	if tr, syn := env.cfg.Workers(); tr != 1 || syn != 1 {
		t.Fatalf("expected serial workers, got %d/%d", tr, syn)
	}
	if env.cfg.OpenAI.APIKey != "sk-flag" {
		t.Fatalf("expected flag key, got %q", env.cfg.OpenAI.APIKey)
	}
	if info, err := os.Stat(env.cfg.Paths.OutputDir); err != nil || !info.IsDir() {
		t.Fatalf("expected output dir to be created: %v", err)
	}
}

func TestDepsReportsMissingBinaries(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("PATH", t.TempDir())

	out, _, err := runCLI(t, []string{"deps"}, env.configPath)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "[MISSING]")
	requireContains(t, out, "[WARN]")
}

func TestDepsPassesWithStubbedBinaries(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries("ffmpeg", "ffprobe", "yt-dlp"))

	out, _, err := runCLI(t, []string{"deps"}, env.configPath)
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	requireContains(t, out, "[OK]")
}

func TestCacheStatsAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	store, err := cache.Open(context.Background(), env.cfg.Cache.Path)
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	if err := store.Put(context.Background(), "gpt-3.5-turbo", "こんにちは。", "Hello."); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out, _, err := runCLI(t, []string{"cache", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	requireContains(t, out, "Entries")
	requireContains(t, out, env.cfg.Cache.Path)

	out, _, err = runCLI(t, []string{"cache", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Removed 1 cached translations")

	out, _, err = runCLI(t, []string{"cache", "clear"}, env.configPath)
	if err != nil {
		t.Fatalf("cache clear again: %v", err)
	}
	requireContains(t, out, "already empty")
}

func TestCacheDisabled(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithCacheDisabled())

	out, _, err := runCLI(t, []string{"cache", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	requireContains(t, out, "disabled")
}

func writeSampleTranscript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "2026-10-19_lecture_transcript.json")
	err := transcript.Save(path, transcript.Transcript{
		CreatedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
		Sentences: []transcript.Sentence{
			{Segment: transcript.Segment{Text: "こんにちは。", Start: time.Second, End: 2 * time.Second}, Translation: "Hello."},
			{Segment: transcript.Segment{Text: "さようなら。", Start: 3 * time.Second, End: 4 * time.Second}, Translation: "Goodbye.", SynthesisFailed: true},
		},
	})
	if err != nil {
		t.Fatalf("save transcript: %v", err)
	}
	return path
}

func TestTranscriptShow(t *testing.T) {
	path := writeSampleTranscript(t)

	out, _, err := runCLI(t, []string{"transcript", "show", path}, "")
	if err != nil {
		t.Fatalf("transcript show: %v", err)
	}
	requireContains(t, out, "こんにちは。")
	requireContains(t, out, "Goodbye. (no audio)")
	requireContains(t, out, "2 sentences")
}

func TestTranscriptExport(t *testing.T) {
	path := writeSampleTranscript(t)

	out, _, err := runCLI(t, []string{"transcript", "export", path, "--format", "vtt"}, "")
	if err != nil {
		t.Fatalf("transcript export: %v", err)
	}
	requireContains(t, out, "WEBVTT")
	requireContains(t, out, "-->")

	if _, _, err := runCLI(t, []string{"transcript", "export", path, "--format", "xlsx"}, ""); err == nil {
		t.Fatal("expected xlsx to stdout to be rejected")
	}

	target := filepath.Join(t.TempDir(), "study.xlsx")
	if _, _, err := runCLI(t, []string{"transcript", "export", path, "-f", "xlsx", "-o", target}, ""); err != nil {
		t.Fatalf("xlsx export: %v", err)
	}
	if info, err := os.Stat(target); err != nil || info.Size() == 0 {
		t.Fatalf("expected xlsx output: %v", err)
	}

	if _, _, err := runCLI(t, []string{"transcript", "export", path, "--format", "docx"}, ""); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestTranscriptExportWarnsOnEmptySubtitles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty_transcript.json")
	if err := transcript.Save(path, transcript.Transcript{CreatedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}); err != nil {
		t.Fatalf("save transcript: %v", err)
	}

	target := filepath.Join(t.TempDir(), "empty.srt")
	_, stderr, err := runCLI(t, []string{"transcript", "export", path, "-o", target}, "")
	if err != nil {
		t.Fatalf("transcript export: %v", err)
	}
	requireContains(t, stderr, "subtitle check: empty_subtitle_file")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected srt output: %v", err)
	}

	_, stderr, err = runCLI(t, []string{"transcript", "export", writeSampleTranscript(t), "--format", "srt"}, "")
	if err != nil {
		t.Fatalf("transcript export: %v", err)
	}
	if strings.Contains(stderr, "subtitle check") {
		t.Fatalf("unexpected subtitle warnings: %s", stderr)
	}
}

func TestReportErrorExitCodes(t *testing.T) {
	if code := reportError(fmt.Errorf("run: %w", context.Canceled)); code != 130 {
		t.Fatalf("expected 130 for cancellation, got %d", code)
	}
	if code := reportError(services.Wrap(services.ErrValidation, "acquire", "resolve", "bad", nil)); code != 1 {
		t.Fatalf("expected 1, got %d", code)
	}
}

func TestFormatClock(t *testing.T) {
	cases := map[time.Duration]string{
		0:                "0:00",
		61 * time.Second: "1:01",
		time.Hour + 2*time.Minute + 3*time.Second: "1:02:03",
	}
	for in, want := range cases {
		if got := formatClock(in); got != want {
			t.Fatalf("formatClock(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestHumanBytes(t *testing.T) {
	if got := humanBytes(512); got != "512 B" {
		t.Fatalf("got %q", got)
	}
	if got := humanBytes(3 * 1024 * 1024); got != "3.0 MiB" {
		t.Fatalf("got %q", got)
	}
}
