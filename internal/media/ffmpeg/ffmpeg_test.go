package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"kotoba/internal/services"
	"kotoba/internal/timeline"
)

func samplePlan() timeline.Plan {
	return timeline.Plan{
		Original: 5 * time.Second,
		Pieces: []timeline.Piece{
			{Kind: timeline.KindOriginal, Start: 0, End: 2 * time.Second},
			{Kind: timeline.KindClip, Path: "/scratch/clip_00000.mp3", Length: time.Second},
			{Kind: timeline.KindSilence, Length: 300 * time.Millisecond},
			{Kind: timeline.KindOriginal, Start: 2 * time.Second, End: 3 * time.Second},
			{Kind: timeline.KindTone, Length: 500 * time.Millisecond, Frequency: 880},
		},
	}
}

func TestBuildFilter(t *testing.T) {
	graph := BuildFilter(samplePlan())

	if len(graph.Clips) != 1 || graph.Clips[0] != "/scratch/clip_00000.mp3" {
		t.Fatalf("unexpected clip inputs %v", graph.Clips)
	}
	wantFragments := []string{
		"[0:a]asplit=2[o0][o1]",
		"[o0]atrim=start=0.000:end=2.000,asetpts=PTS-STARTPTS",
		"[1:a]asetpts=PTS-STARTPTS",
		"anullsrc=r=44100:cl=stereo,atrim=duration=0.300",
		"[o1]atrim=start=2.000:end=3.000",
		"sine=frequency=880:sample_rate=44100:duration=0.500",
		"[p0][p1][p2][p3][p4]concat=n=5:v=0:a=1[out]",
	}
	for _, fragment := range wantFragments {
		if !strings.Contains(graph.Script, fragment) {
			t.Fatalf("filter script missing %q:\n%s", fragment, graph.Script)
		}
	}
	if got := strings.Count(graph.Script, "channel_layouts=stereo"); got != 5 {
		t.Fatalf("expected every piece normalized, got %d", got)
	}
}

func TestBuildFilterSingleOriginalSkipsSplit(t *testing.T) {
	plan := timeline.Plan{Pieces: []timeline.Piece{{Kind: timeline.KindOriginal, Start: 0, End: time.Second}}}
	graph := BuildFilter(plan)
	if strings.Contains(graph.Script, "asplit") {
		t.Fatalf("unexpected asplit:\n%s", graph.Script)
	}
	if !strings.HasPrefix(graph.Script, "[0:a]atrim") {
		t.Fatalf("unexpected script:\n%s", graph.Script)
	}
}

func TestRenderInvokesFFmpegAndFinalizes(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out_complete.mp3")

	var captured []string
	var script string
	enc := New("ffmpeg-test", "", nil)
	enc.Run = func(_ context.Context, name string, args ...string) error {
		if name != "ffmpeg-test" {
			t.Fatalf("unexpected binary %q", name)
		}
		captured = args
		idx := slices.Index(args, "-filter_complex_script")
		if idx < 0 {
			t.Fatalf("missing -filter_complex_script in %v", args)
		}
		data, err := os.ReadFile(args[idx+1])
		if err != nil {
			t.Fatalf("read script: %v", err)
		}
		script = string(data)
		return os.WriteFile(args[len(args)-1], []byte("mp3"), 0o644)
	}

	if err := enc.Render(context.Background(), samplePlan(), "/in/original.mp3", dest); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(script, "concat=n=5") {
		t.Fatalf("unexpected script %q", script)
	}
	if captured[slices.Index(captured, "-b:a")+1] != "192k" {
		t.Fatalf("expected 192k bitrate in %v", captured)
	}
	if captured[slices.Index(captured, "-i")+1] != "/in/original.mp3" {
		t.Fatalf("original should be input 0: %v", captured)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the output to remain, got %v", entries)
	}
}

func TestRenderFailureIsExternalTool(t *testing.T) {
	dir := t.TempDir()
	enc := New("ffmpeg", "", nil)
	enc.Run = func(context.Context, string, ...string) error {
		return errors.New("exit status 1: Invalid argument")
	}
	err := enc.Render(context.Background(), samplePlan(), "orig.mp3", filepath.Join(dir, "out.mp3"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected scratch files removed, got %v", entries)
	}
}

func TestRenderCancelledReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	enc := New("ffmpeg", "", nil)
	enc.Run = func(ctx context.Context, _ string, _ ...string) error { return ctx.Err() }
	err := enc.Render(ctx, samplePlan(), "orig.mp3", filepath.Join(t.TempDir(), "out.mp3"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExtractSliceArgs(t *testing.T) {
	var captured []string
	enc := New("", "128k", nil)
	enc.Run = func(_ context.Context, name string, args ...string) error {
		if name != "ffmpeg" {
			t.Fatalf("expected default binary, got %q", name)
		}
		captured = args
		return nil
	}
	if err := enc.ExtractSlice(context.Background(), "src.mp3", 90*time.Second, 1500*time.Millisecond, "chunk.mp3"); err != nil {
		t.Fatalf("ExtractSlice: %v", err)
	}
	joined := strings.Join(captured, " ")
	for _, want := range []string{"-ss 90.000", "-t 1.500", "-i src.mp3", "-b:a 128k"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
	if captured[len(captured)-1] != "chunk.mp3" {
		t.Fatalf("dest should be last: %v", captured)
	}
}

func TestExtractSliceRejectsEmptyWindow(t *testing.T) {
	enc := New("", "", nil)
	enc.Run = func(context.Context, string, ...string) error {
		t.Fatal("runner should not be called")
		return nil
	}
	if err := enc.ExtractSlice(context.Background(), "a", 0, 0, "b"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
