package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"kotoba/internal/chunkplan"
	"kotoba/internal/logging"
	"kotoba/internal/services"
	"kotoba/internal/transcript"
)

// Service is the remote speech-to-text call.
type Service interface {
	Transcribe(ctx context.Context, path string) ([]transcript.Segment, error)
}

// Slicer cuts a window of the source recording into its own file.
type Slicer interface {
	ExtractSlice(ctx context.Context, src string, start, length time.Duration, dest string) error
}

// Prober reports the duration of a media file.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Options tune chunking and recursion.
type Options struct {
	// CeilingBytes is the largest file the service accepts.
	CeilingBytes int64
	// TargetBytes is the planned chunk size, normally the ceiling minus a margin.
	TargetBytes int64
	Band        chunkplan.Band
	MaxDepth    int
	MinSplit    time.Duration
	// Delay is the pause between consecutive remote calls.
	Delay      time.Duration
	ScratchDir string
	// OnProgress is called after each top-level window completes.
	OnProgress func(done, total int)
}

// Defaults applied to zero Options fields.
const (
	DefaultCeilingBytes = 25 * 1024 * 1024
	DefaultMaxDepth     = 5
	DefaultMinSplit     = time.Second
)

// Adapter transcribes files of any size through a size-limited Service.
type Adapter struct {
	service Service
	slicer  Slicer
	prober  Prober
	opts    Options
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error
}

// New constructs an Adapter.
func New(service Service, slicer Slicer, prober Prober, opts Options, logger *slog.Logger) *Adapter {
	if opts.CeilingBytes <= 0 {
		opts.CeilingBytes = DefaultCeilingBytes
	}
	if opts.TargetBytes <= 0 || opts.TargetBytes > opts.CeilingBytes {
		opts.TargetBytes = opts.CeilingBytes
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MinSplit <= 0 {
		opts.MinSplit = DefaultMinSplit
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	return &Adapter{
		service: service,
		slicer:  slicer,
		prober:  prober,
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "transcribe"),
		sleep:   sleepContext,
	}
}

// job carries the state of one Transcribe call.
type job struct {
	src     string
	total   time.Duration
	calls   int
	chunks  int
	lastErr error
	logger  *slog.Logger
}

// Transcribe returns the segments of path in start order with times relative
// to the start of the file. Individual chunk failures are logged and skipped;
// a run that yields no segments at all fails with services.ErrPhaseFailed.
func (a *Adapter) Transcribe(ctx context.Context, path string) ([]transcript.Segment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "transcribe", "stat", path, err)
	}
	j := &job{src: path, logger: logging.WithContext(ctx, a.logger)}

	if info.Size() <= a.opts.CeilingBytes {
		segments, err := a.call(ctx, j, path)
		switch {
		case err == nil:
			a.report(1, 1)
			return a.finish(j, segments)
		case fatal(ctx, err):
			return nil, err
		case !errors.Is(err, services.ErrOversize):
			j.lastErr = err
			a.warnChunk(j, chunkplan.Window{}, err)
			return a.finish(j, nil)
		}
		j.logger.Info("service rejected whole file, splitting",
			logging.Int64("size_bytes", info.Size()),
			logging.Error(err),
		)
		if err := a.probe(ctx, j); err != nil {
			return nil, err
		}
		segments, err = a.split(ctx, j, chunkplan.Window{Start: 0, End: j.total}, 0)
		if err != nil {
			return nil, err
		}
		a.report(1, 1)
		return a.finish(j, segments)
	}

	if err := a.probe(ctx, j); err != nil {
		return nil, err
	}
	plan := chunkplan.Compute(info.Size(), j.total, a.opts.TargetBytes, a.opts.Band)
	windows := chunkplan.Windows(j.total, plan, a.opts.MinSplit)
	j.logger.Info("splitting oversize audio",
		logging.Int64("size_bytes", info.Size()),
		logging.Duration("total", j.total),
		logging.Duration("chunk_duration", plan.Duration),
		logging.Int("chunks", len(windows)),
	)

	var segments []transcript.Segment
	for i, w := range windows {
		got, err := a.window(ctx, j, w, 0)
		if err != nil {
			if fatal(ctx, err) {
				return nil, err
			}
			j.lastErr = err
			a.warnChunk(j, w, err)
		}
		segments = append(segments, got...)
		a.report(i+1, len(windows))
	}
	return a.finish(j, segments)
}

// window transcribes [w.Start, w.End) of the source, halving it whenever the
// chunk is too large or the service rejects it as oversize. depth counts the
// halvings above w.
func (a *Adapter) window(ctx context.Context, j *job, w chunkplan.Window, depth int) ([]transcript.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.chunks++
	chunk := filepath.Join(a.opts.ScratchDir, fmt.Sprintf("chunk_%04d.mp3", j.chunks))
	defer os.Remove(chunk)

	if err := a.slicer.ExtractSlice(ctx, j.src, w.Start, w.Duration(), chunk); err != nil {
		return nil, err
	}
	info, err := os.Stat(chunk)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "stat chunk", chunk, err)
	}

	if info.Size() <= a.opts.CeilingBytes {
		segments, err := a.call(ctx, j, chunk)
		if err == nil {
			return shift(segments, w.Start, j.total), nil
		}
		if !errors.Is(err, services.ErrOversize) {
			return nil, err
		}
	}
	_ = os.Remove(chunk)
	return a.split(ctx, j, w, depth)
}

// split halves w and transcribes each half, abandoning w once either bound is
// reached.
func (a *Adapter) split(ctx context.Context, j *job, w chunkplan.Window, depth int) ([]transcript.Segment, error) {
	if depth+1 > a.opts.MaxDepth || w.Duration()/2 < a.opts.MinSplit {
		logging.WarnWithContext(j.logger, "abandoning audio slice", "transcription_slice_abandoned",
			logging.Duration("start", w.Start),
			logging.Duration("end", w.End),
			logging.Int("depth", depth),
			logging.String(logging.FieldErrorHint, "re-encode the source at a lower bitrate"),
			logging.String(logging.FieldImpact, "speech in this slice is missing from the transcript"),
		)
		return nil, nil
	}
	first, second := chunkplan.Halve(w)
	var segments []transcript.Segment
	for _, half := range []chunkplan.Window{first, second} {
		got, err := a.window(ctx, j, half, depth+1)
		if err != nil {
			if fatal(ctx, err) {
				return nil, err
			}
			j.lastErr = err
			a.warnChunk(j, half, err)
			continue
		}
		segments = append(segments, got...)
	}
	return segments, nil
}

// call paces and issues one remote request.
func (a *Adapter) call(ctx context.Context, j *job, path string) ([]transcript.Segment, error) {
	if j.calls > 0 && a.opts.Delay > 0 {
		if err := a.sleep(ctx, a.opts.Delay); err != nil {
			return nil, err
		}
	}
	j.calls++
	return a.service.Transcribe(ctx, path)
}

func (a *Adapter) probe(ctx context.Context, j *job) error {
	total, err := a.prober.Duration(ctx, j.src)
	if err != nil {
		return err
	}
	j.total = total
	return nil
}

func (a *Adapter) finish(j *job, segments []transcript.Segment) ([]transcript.Segment, error) {
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrPhaseFailed, "transcribe", "transcribe", "no segments returned", j.lastErr)
	}
	j.logger.Info("transcription complete",
		logging.Int("segments", len(segments)),
		logging.Int("remote_calls", j.calls),
	)
	return segments, nil
}

func (a *Adapter) report(done, total int) {
	if a.opts.OnProgress != nil {
		a.opts.OnProgress(done, total)
	}
}

func (a *Adapter) warnChunk(j *job, w chunkplan.Window, err error) {
	logging.WarnWithContext(j.logger, "transcription chunk failed", "transcription_chunk_failed",
		logging.Duration("start", w.Start),
		logging.Duration("end", w.End),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.FailureHint(err)),
		logging.String(logging.FieldImpact, "speech in this chunk is missing from the transcript"),
	)
}

// shift moves segments from chunk time onto the source timeline and clamps
// them to [0, total]. Segments lying entirely past total are dropped.
func shift(segments []transcript.Segment, offset, total time.Duration) []transcript.Segment {
	out := make([]transcript.Segment, 0, len(segments))
	for _, seg := range segments {
		seg.Start = clamp(seg.Start+offset, total)
		seg.End = clamp(seg.End+offset, total)
		if total > 0 && seg.Start == total && seg.End == total {
			continue
		}
		if seg.End < seg.Start {
			seg.End = seg.Start
		}
		out = append(out, seg)
	}
	return out
}

func clamp(d, total time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if total > 0 && d > total {
		return total
	}
	return d
}

// fatal reports errors that must stop the whole transcription rather than
// degrade a single chunk.
func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, services.ErrConfiguration)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
