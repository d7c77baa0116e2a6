package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"kotoba/internal/acquire"
	"kotoba/internal/fileutil"
	"kotoba/internal/logging"
	"kotoba/internal/metrics"
	"kotoba/internal/orchestrator"
	"kotoba/internal/progress"
	"kotoba/internal/sentences"
	"kotoba/internal/services"
	"kotoba/internal/textutil"
	"kotoba/internal/timeline"
	"kotoba/internal/transcript"
)

// Stage names used for logging and metrics.
const (
	StageTranscription = "transcription"
	StageMerge         = "merge"
	StageTranslation   = "translation"
	StageSynthesis     = "synthesis"
	StageAssembly      = "assembly"
)

const lockFileName = ".kotoba.lock"

// Transcriber returns the timestamped fragments of a recording.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) ([]transcript.Segment, error)
}

// Translator renders one sentence into English.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Synthesizer writes spoken English for text to dest.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, dest string) error
}

// Prober reports the duration of a media file.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Renderer writes the audio described by plan to dest.
type Renderer interface {
	Render(ctx context.Context, plan timeline.Plan, original, dest string) error
}

// Deps are the collaborators a run calls out to.
type Deps struct {
	// NewTranscriber builds a transcriber that keeps its chunk files in
	// scratchDir and reports completed chunks to onProgress.
	NewTranscriber func(scratchDir string, onProgress func(done, total int)) Transcriber
	Translator     Translator
	Synthesizer    Synthesizer
	Prober         Prober
	Renderer       Renderer
	Metrics        *metrics.Metrics
	Progress       *progress.Aggregator
	Logger         *slog.Logger
}

// Options tune a run.
type Options struct {
	ScratchRoot        string
	Sentences          sentences.Options
	TranslationWorkers int
	SynthesisWorkers   int
	Timeline           timeline.Options
	// SeparateFiles writes the bilingual track and the original side by side
	// instead of one combined file.
	SeparateFiles   bool
	KeepTranscript  bool
	MetricsTextfile string
	Now             func() time.Time
}

// Outputs are the files a run leaves in the channel folder.
type Outputs struct {
	Complete   string
	Bilingual  string
	Original   string
	Transcript string
}

// Files lists the outputs that were written.
func (o Outputs) Files() []string {
	var files []string
	for _, path := range []string{o.Complete, o.Bilingual, o.Original, o.Transcript} {
		if path != "" {
			files = append(files, path)
		}
	}
	return files
}

// Result summarizes a finished run.
type Result struct {
	RunID               string
	Outputs             Outputs
	Sentences           int
	TranslationFailures int
	SynthesisFailures   int
	// Duration is the length of the source recording.
	Duration time.Duration
	Elapsed  time.Duration
}

// Pipeline converts acquired recordings into bilingual tracks.
type Pipeline struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

// New validates deps and returns a Pipeline. A nil Progress gets a private
// aggregator with the default weights.
func New(deps Deps, opts Options) (*Pipeline, error) {
	switch {
	case deps.NewTranscriber == nil:
		return nil, errors.New("pipeline: transcriber is required")
	case deps.Translator == nil:
		return nil, errors.New("pipeline: translator is required")
	case deps.Synthesizer == nil:
		return nil, errors.New("pipeline: synthesizer is required")
	case deps.Prober == nil:
		return nil, errors.New("pipeline: prober is required")
	case deps.Renderer == nil:
		return nil, errors.New("pipeline: renderer is required")
	}
	if deps.Progress == nil {
		deps.Progress = progress.NewDefault()
	}
	if opts.ScratchRoot == "" {
		opts.ScratchRoot = os.TempDir()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		deps:   deps,
		opts:   opts,
		logger: logging.NewComponentLogger(deps.Logger, "pipeline"),
	}, nil
}

// OutputBase returns the date-prefixed file name stem for title.
func OutputBase(title string, now time.Time) string {
	return now.Format("2006-01-02") + "_" + textutil.SanitizeFileName(title, "audio")
}

// run carries the state of one Run call.
type run struct {
	id        string
	src       acquire.Source
	scratch   string
	base      string
	total     time.Duration
	sentences []transcript.Sentence
	clips     map[string]time.Duration
	result    Result
}

// Run converts src. On failure or cancellation every partial output is
// removed; the source file is left in place.
func (p *Pipeline) Run(ctx context.Context, src acquire.Source) (result Result, err error) {
	started := time.Now()
	r := &run{id: uuid.NewString(), src: src}
	r.result.RunID = r.id
	ctx = services.WithRunID(ctx, r.id)
	logger := logging.WithContext(ctx, p.logger)

	defer func() {
		r.result.Elapsed = time.Since(started)
		result = r.result
		p.deps.Metrics.RecordRun(err)
		if werr := p.deps.Metrics.WriteTextfile(p.opts.MetricsTextfile); werr != nil {
			logging.WarnWithContext(logger, "metrics export failed", "metrics_write_failed",
				logging.Error(werr),
				logging.String(logging.FieldErrorHint, "check metrics.textfile is writable"),
				logging.String(logging.FieldImpact, "run metrics were not exported"),
			)
		}
	}()

	if src.Path == "" || src.Dir == "" {
		return result, services.Wrap(services.ErrValidation, "pipeline", "run", "source has no path or output folder", nil)
	}

	lock := flock.New(filepath.Join(src.Dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return result, fmt.Errorf("acquire output lock: %w", err)
	}
	if !locked {
		return result, services.Wrap(services.ErrValidation, "pipeline", "lock",
			fmt.Sprintf("another run is writing to %s", src.Dir), nil)
	}
	defer func() {
		if uerr := lock.Unlock(); uerr != nil {
			logger.Warn("failed to release output lock", logging.Error(uerr))
		}
	}()

	r.scratch = filepath.Join(p.opts.ScratchRoot, "run-"+r.id)
	if err := os.MkdirAll(r.scratch, 0o755); err != nil {
		return result, fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() {
		if rerr := os.RemoveAll(r.scratch); rerr != nil {
			logging.WarnWithContext(logger, "scratch cleanup failed", "scratch_cleanup_failed",
				logging.String("scratch_dir", r.scratch),
				logging.Error(rerr),
				logging.String(logging.FieldErrorHint, "remove the directory by hand"),
				logging.String(logging.FieldImpact, "temporary files remain on disk"),
			)
		}
	}()

	r.base = OutputBase(src.Title, p.opts.Now())
	logger.Info("conversion started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("source", src.Path),
		logging.String("channel", src.Channel),
		logging.String("output_base", r.base),
	)

	if err := p.execute(ctx, r); err != nil {
		p.removePartial(logger, r.result.Outputs)
		r.result.Outputs = Outputs{}
		if errors.Is(err, context.Canceled) {
			logger.Info("conversion cancelled", logging.String(logging.FieldEventType, "run_cancelled"))
		}
		return result, err
	}

	p.deps.Progress.Finish("Complete")
	logger.Info("conversion completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("sentences", r.result.Sentences),
		logging.Int("translation_failures", r.result.TranslationFailures),
		logging.Int("synthesis_failures", r.result.SynthesisFailures),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run) error {
	var segments []transcript.Segment
	if err := p.stage(ctx, StageTranscription, func(ctx context.Context, logger *slog.Logger) error {
		var err error
		segments, err = p.transcribe(ctx, r)
		if err == nil {
			logger.Info("transcription finished", logging.Int("segments", len(segments)))
		}
		return err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, StageMerge, func(ctx context.Context, logger *slog.Logger) error {
		r.sentences = sentences.Merge(segments, p.opts.Sentences)
		if len(r.sentences) == 0 {
			return services.Wrap(services.ErrPhaseFailed, StageMerge, "merge", "transcription contained no speech", nil)
		}
		total, err := p.deps.Prober.Duration(ctx, r.src.Path)
		if err != nil {
			return err
		}
		r.total = total
		r.result.Sentences = len(r.sentences)
		r.result.Duration = total
		p.deps.Metrics.SetSentences(len(r.sentences))
		logger.Info("sentences merged",
			logging.Int("segments", len(segments)),
			logging.Int("sentences", len(r.sentences)),
			logging.Duration("duration", total),
		)
		return nil
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, StageTranslation, func(ctx context.Context, logger *slog.Logger) error {
		return p.translate(ctx, logger, r)
	}); err != nil {
		return err
	}
	if err := p.stage(ctx, StageSynthesis, func(ctx context.Context, logger *slog.Logger) error {
		return p.synthesize(ctx, logger, r)
	}); err != nil {
		return err
	}
	return p.stage(ctx, StageAssembly, func(ctx context.Context, logger *slog.Logger) error {
		return p.assemble(ctx, logger, r)
	})
}

func (p *Pipeline) transcribe(ctx context.Context, r *run) ([]transcript.Segment, error) {
	report := p.deps.Progress.Span(progress.PhaseTranslation, 0, 30)
	report(0, "Transcribing audio")
	chunks := filepath.Join(r.scratch, "chunks")
	if err := os.MkdirAll(chunks, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk directory: %w", err)
	}
	transcriber := p.deps.NewTranscriber(chunks, func(done, total int) {
		if total <= 0 {
			return
		}
		report(float64(done)/float64(total), fmt.Sprintf("Transcribed chunk %d/%d", done, total))
	})
	segments, err := transcriber.Transcribe(ctx, r.src.Path)
	if err != nil {
		return nil, err
	}
	report(1, "Transcription complete")
	return segments, nil
}

func (p *Pipeline) translate(ctx context.Context, logger *slog.Logger, r *run) error {
	report := p.deps.Progress.Span(progress.PhaseTranslation, 30, 100)
	results, err := orchestrator.Map(ctx, r.sentences, func(ctx context.Context, index int, s transcript.Sentence) (string, error) {
		return p.deps.Translator.Translate(services.WithItemIndex(ctx, index), s.Text)
	}, orchestrator.Options{
		Workers: p.opts.TranslationWorkers,
		OnProgress: func(done, total int) {
			report(float64(done)/float64(total), fmt.Sprintf("Translated %d/%d sentences", done, total))
		},
	})
	if err != nil {
		return err
	}

	failures := 0
	for i, res := range results {
		if res.OK() {
			r.sentences[i].Translation = res.Value
			continue
		}
		if errors.Is(res.Err, services.ErrConfiguration) {
			return res.Err
		}
		failures++
		r.sentences[i].Translation = fmt.Sprintf("[translation failed: %s]", r.sentences[i].Text)
		r.sentences[i].TranslationFailed = true
		p.deps.Metrics.RecordDegraded(StageTranslation)
		logging.WarnWithContext(logger, "translation failed", "translation_degraded",
			logging.Int(logging.FieldItemIndex, i),
			logging.String("text", r.sentences[i].Text),
			logging.Error(res.Err),
			logging.String(logging.FieldErrorHint, services.FailureHint(res.Err)),
			logging.String(logging.FieldImpact, "sentence keeps its original audio without an English clip"),
		)
	}
	r.result.TranslationFailures = failures
	if failures == len(r.sentences) {
		return services.Wrap(services.ErrPhaseFailed, StageTranslation, "translate",
			fmt.Sprintf("all %d sentences failed to translate", failures), results[0].Err)
	}
	return nil
}

type clip struct {
	path   string
	length time.Duration
}

func (p *Pipeline) synthesize(ctx context.Context, logger *slog.Logger, r *run) error {
	var targets []int
	for i, s := range r.sentences {
		if !s.TranslationFailed {
			targets = append(targets, i)
		}
	}

	p.deps.Progress.Reset(progress.PhaseAudioGen, "Generating English audio")
	report := p.deps.Progress.Span(progress.PhaseAudioGen, 0, 80)
	results, err := orchestrator.Map(ctx, targets, func(ctx context.Context, _ int, index int) (clip, error) {
		ctx = services.WithItemIndex(ctx, index)
		dest := filepath.Join(r.scratch, fmt.Sprintf("clip_%05d.mp3", index))
		if err := p.deps.Synthesizer.Synthesize(ctx, r.sentences[index].Translation, dest); err != nil {
			_ = fileutil.RemoveIfExists(dest)
			return clip{}, err
		}
		length, err := p.deps.Prober.Duration(ctx, dest)
		if err != nil {
			_ = fileutil.RemoveIfExists(dest)
			return clip{}, err
		}
		return clip{path: dest, length: length}, nil
	}, orchestrator.Options{
		Workers: p.opts.SynthesisWorkers,
		OnProgress: func(done, total int) {
			report(float64(done)/float64(total), fmt.Sprintf("Generated %d/%d clips", done, total))
		},
	})
	if err != nil {
		return err
	}

	r.clips = make(map[string]time.Duration, len(targets))
	failures := 0
	for k, res := range results {
		index := targets[k]
		if res.OK() {
			r.sentences[index].Clip = res.Value.path
			r.clips[res.Value.path] = res.Value.length
			continue
		}
		if errors.Is(res.Err, services.ErrConfiguration) {
			return res.Err
		}
		failures++
		r.sentences[index].SynthesisFailed = true
		p.deps.Metrics.RecordDegraded(StageSynthesis)
		logging.WarnWithContext(logger, "speech synthesis failed", "synthesis_degraded",
			logging.Int(logging.FieldItemIndex, index),
			logging.String("text", r.sentences[index].Translation),
			logging.Error(res.Err),
			logging.String(logging.FieldErrorHint, services.FailureHint(res.Err)),
			logging.String(logging.FieldImpact, "sentence keeps its original audio without an English clip"),
		)
	}
	r.result.SynthesisFailures = failures
	if len(targets) > 0 && failures == len(targets) {
		return services.Wrap(services.ErrPhaseFailed, StageSynthesis, "synthesize",
			fmt.Sprintf("all %d clips failed to synthesize", failures), results[0].Err)
	}
	return nil
}

func (p *Pipeline) assemble(ctx context.Context, logger *slog.Logger, r *run) error {
	report := p.deps.Progress.Span(progress.PhaseAudioGen, 80, 100)
	report(0, "Assembling bilingual audio")

	r.result.Outputs.Transcript = filepath.Join(r.src.Dir, r.base+"_transcript.json")
	if err := transcript.Save(r.result.Outputs.Transcript, transcript.Transcript{
		Sentences: r.sentences,
		CreatedAt: p.opts.Now(),
	}); err != nil {
		return err
	}

	topts := p.opts.Timeline
	topts.Combined = !p.opts.SeparateFiles
	topts.ClipDurations = r.clips
	plan := timeline.Build(r.sentences, r.total, topts)
	logger.Info("timeline planned",
		logging.Int("pieces", len(plan.Pieces)),
		logging.Duration("planned_duration", plan.Duration()),
	)

	dest := filepath.Join(r.src.Dir, r.base+"_complete.mp3")
	if p.opts.SeparateFiles {
		dest = filepath.Join(r.src.Dir, r.base+"_bilingual.mp3")
		r.result.Outputs.Bilingual = dest
	} else {
		r.result.Outputs.Complete = dest
	}
	if err := p.deps.Renderer.Render(ctx, plan, r.src.Path, dest); err != nil {
		return err
	}
	report(0.9, "Finalizing outputs")

	if !p.opts.KeepTranscript {
		if err := fileutil.RemoveIfExists(r.result.Outputs.Transcript); err != nil {
			logger.Warn("failed to remove transcript",
				logging.String("path", r.result.Outputs.Transcript),
				logging.Error(err),
			)
		} else {
			r.result.Outputs.Transcript = ""
		}
	}

	if p.opts.SeparateFiles {
		original := filepath.Join(r.src.Dir, r.base+".mp3")
		if err := p.placeOriginal(r.src, original); err != nil {
			return err
		}
		r.result.Outputs.Original = original
	} else if r.src.Owned {
		if err := fileutil.RemoveIfExists(r.src.Path); err != nil {
			logger.Warn("failed to remove source copy", logging.String("path", r.src.Path), logging.Error(err))
		}
	}
	report(1, "Assembly complete")
	return nil
}

// placeOriginal puts the original recording at dest, moving a file kotoba
// owns and copying one it does not.
func (p *Pipeline) placeOriginal(src acquire.Source, dest string) error {
	if fileutil.SameFile(src.Path, dest) {
		return nil
	}
	if src.Owned {
		if err := os.Rename(src.Path, dest); err == nil {
			return nil
		}
	}
	if err := fileutil.CopyFile(src.Path, dest); err != nil {
		return fmt.Errorf("place original audio: %w", err)
	}
	if src.Owned {
		return fileutil.RemoveIfExists(src.Path)
	}
	return nil
}

func (p *Pipeline) removePartial(logger *slog.Logger, outputs Outputs) {
	for _, path := range []string{outputs.Complete, outputs.Bilingual, outputs.Transcript} {
		if path == "" {
			continue
		}
		if err := fileutil.RemoveIfExists(path); err != nil {
			logger.Warn("failed to remove partial output", logging.String("path", path), logging.Error(err))
		}
	}
}
