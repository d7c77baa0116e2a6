package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"kotoba/internal/logging"
	"kotoba/internal/services"
	"kotoba/internal/timeline"
)

const (
	// SampleRate is the output sample rate of every rendered track.
	SampleRate = 44100
	// DefaultBitrate is the MP3 encoder bitrate.
	DefaultBitrate = "192k"
)

// Runner executes a command and reports failure with stderr folded in.
type Runner func(ctx context.Context, name string, args ...string) error

// ExecRunner runs the command with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Encoder wraps the ffmpeg binary.
type Encoder struct {
	Binary  string
	Bitrate string
	Run     Runner
	logger  *slog.Logger
}

// New returns an Encoder for binary.
func New(binary, bitrate string, logger *slog.Logger) *Encoder {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(bitrate) == "" {
		bitrate = DefaultBitrate
	}
	return &Encoder{
		Binary:  binary,
		Bitrate: bitrate,
		Run:     ExecRunner,
		logger:  logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// ExtractSlice encodes [start, start+length) of src into dest as MP3.
func (e *Encoder) ExtractSlice(ctx context.Context, src string, start, length time.Duration, dest string) error {
	if length <= 0 {
		return services.Wrap(services.ErrValidation, "ffmpeg", "extract slice", fmt.Sprintf("non-positive length %s", length), nil)
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", seconds(start),
		"-t", seconds(length),
		"-i", src,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", e.Bitrate,
		dest,
	}
	if err := e.run(ctx, args); err != nil {
		return e.toolError(ctx, "extract slice", src, err)
	}
	return nil
}

// Render writes plan to dest. original is the recording that original-slice
// pieces are cut from.
func (e *Encoder) Render(ctx context.Context, plan timeline.Plan, original, dest string) error {
	if len(plan.Pieces) == 0 {
		return services.Wrap(services.ErrValidation, "ffmpeg", "render", "empty plan", nil)
	}
	graph := BuildFilter(plan)

	script, err := os.CreateTemp(filepath.Dir(dest), ".kotoba-filter-*.txt")
	if err != nil {
		return fmt.Errorf("create filter script: %w", err)
	}
	scriptPath := script.Name()
	defer os.Remove(scriptPath)
	if _, err := script.WriteString(graph.Script); err != nil {
		script.Close()
		return fmt.Errorf("write filter script: %w", err)
	}
	if err := script.Close(); err != nil {
		return fmt.Errorf("close filter script: %w", err)
	}

	partial := dest + ".part.mp3"
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", original}
	for _, clip := range graph.Clips {
		args = append(args, "-i", clip)
	}
	args = append(args,
		"-filter_complex_script", scriptPath,
		"-map", "[out]",
		"-ar", fmt.Sprint(SampleRate),
		"-ac", "2",
		"-c:a", "libmp3lame",
		"-b:a", e.Bitrate,
		partial,
	)

	e.logger.Debug("rendering timeline",
		logging.String("dest", dest),
		logging.Int("pieces", len(plan.Pieces)),
		logging.Int("clips", len(graph.Clips)),
		logging.Duration("duration", plan.Duration()),
	)
	if err := e.run(ctx, args); err != nil {
		_ = os.Remove(partial)
		return e.toolError(ctx, "render", dest, err)
	}
	if err := os.Rename(partial, dest); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("finalize %s: %w", dest, err)
	}
	return nil
}

// Graph is a rendered filter script plus the clip inputs it references.
// Input 0 is always the original recording; clip i is input i+1.
type Graph struct {
	Script string
	Clips  []string
}

// BuildFilter converts plan into a filter_complex script.
func BuildFilter(plan timeline.Plan) Graph {
	const normalize = "aformat=sample_fmts=fltp:sample_rates=44100:channel_layouts=stereo"

	originals := 0
	for _, piece := range plan.Pieces {
		if piece.Kind == timeline.KindOriginal {
			originals++
		}
	}

	var (
		lines  []string
		labels []string
		clips  []string
	)
	originalLabel := func(int) string { return "[0:a]" }
	if originals > 1 {
		split := make([]string, originals)
		for i := range split {
			split[i] = fmt.Sprintf("[o%d]", i)
		}
		lines = append(lines, fmt.Sprintf("[0:a]asplit=%d%s", originals, strings.Join(split, "")))
		originalLabel = func(n int) string { return fmt.Sprintf("[o%d]", n) }
	}

	nextOriginal := 0
	for i, piece := range plan.Pieces {
		label := fmt.Sprintf("[p%d]", i)
		labels = append(labels, label)
		switch piece.Kind {
		case timeline.KindOriginal:
			lines = append(lines, fmt.Sprintf("%satrim=start=%s:end=%s,asetpts=PTS-STARTPTS,%s%s",
				originalLabel(nextOriginal), seconds(piece.Start), seconds(piece.End), normalize, label))
			nextOriginal++
		case timeline.KindClip:
			clips = append(clips, piece.Path)
			lines = append(lines, fmt.Sprintf("[%d:a]asetpts=PTS-STARTPTS,%s%s", len(clips), normalize, label))
		case timeline.KindSilence:
			lines = append(lines, fmt.Sprintf("anullsrc=r=%d:cl=stereo,atrim=duration=%s,%s%s",
				SampleRate, seconds(piece.Length), normalize, label))
		case timeline.KindTone:
			lines = append(lines, fmt.Sprintf("sine=frequency=%d:sample_rate=%d:duration=%s,%s%s",
				piece.Frequency, SampleRate, seconds(piece.Length), normalize, label))
		}
	}
	lines = append(lines, fmt.Sprintf("%sconcat=n=%d:v=0:a=1[out]", strings.Join(labels, ""), len(labels)))
	return Graph{Script: strings.Join(lines, ";\n") + "\n", Clips: clips}
}

func (e *Encoder) run(ctx context.Context, args []string) error {
	run := e.Run
	if run == nil {
		run = ExecRunner
	}
	return run(ctx, e.Binary, args...)
}

func (e *Encoder) toolError(ctx context.Context, op, path string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return services.Wrap(services.ErrExternalTool, "ffmpeg", op, path, err)
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
