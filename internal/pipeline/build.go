package pipeline

import (
	"context"
	"log/slog"
	"time"

	"kotoba/internal/cache"
	"kotoba/internal/chunkplan"
	"kotoba/internal/config"
	"kotoba/internal/logging"
	"kotoba/internal/media/ffmpeg"
	"kotoba/internal/media/ffprobe"
	"kotoba/internal/metrics"
	"kotoba/internal/progress"
	"kotoba/internal/sentences"
	"kotoba/internal/services/openai"
	"kotoba/internal/timeline"
	"kotoba/internal/transcribe"
)

// OpenAIConfig maps the openai configuration section onto client settings.
func OpenAIConfig(cfg *config.Config) openai.Config {
	return openai.Config{
		APIKey:             cfg.OpenAI.APIKey,
		BaseURL:            cfg.OpenAI.BaseURL,
		TranscriptionModel: cfg.OpenAI.TranscriptionModel,
		TranslationModel:   cfg.OpenAI.TranslationModel,
		TTSModel:           cfg.OpenAI.TTSModel,
		TTSVoice:           cfg.OpenAI.TTSVoice,
		Language:           cfg.OpenAI.SourceLanguage,
		TimeoutSeconds:     cfg.OpenAI.TimeoutSeconds,
	}
}

// OptionsFromConfig derives run options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	translationWorkers, synthesisWorkers := cfg.Workers()
	return Options{
		ScratchRoot: cfg.Paths.ScratchDir,
		Sentences: sentences.Options{
			MaxGap:       seconds(cfg.Sentences.MaxGapSeconds),
			RestartGap:   seconds(cfg.Sentences.RestartGapSeconds),
			HardCapRunes: cfg.Sentences.HardCapChars,
			SoftMinRunes: cfg.Sentences.SoftMinChars,
		},
		TranslationWorkers: translationWorkers,
		SynthesisWorkers:   synthesisWorkers,
		Timeline: timeline.Options{
			ClipPause:     millis(cfg.Assembly.EnglishPauseMS),
			OriginalPause: millis(cfg.Assembly.OriginalPauseMS),
			CueSilence:    millis(cfg.Assembly.CueSilenceMS),
			CueTone:       millis(cfg.Assembly.CueToneMS),
			CueToneHz:     cfg.Assembly.CueToneHz,
		},
		SeparateFiles:   cfg.Output.SeparateFiles,
		KeepTranscript:  cfg.Output.KeepTranscript,
		MetricsTextfile: cfg.Metrics.Textfile,
	}
}

// FromConfig wires the production collaborators described by cfg: the OpenAI
// client behind metrics and the translation cache, ffmpeg for slicing and
// rendering, and ffprobe for durations. The returned close function releases
// the cache and must be called once the pipeline is no longer used.
func FromConfig(ctx context.Context, cfg *config.Config, agg *progress.Aggregator, m *metrics.Metrics, logger *slog.Logger) (*Pipeline, func() error, error) {
	client := openai.NewClient(OpenAIConfig(cfg),
		openai.WithRetryMaxAttempts(cfg.OpenAI.RetryAttempts),
		openai.WithLogger(logger),
	)
	encoder := ffmpeg.New(cfg.FFmpegBinary(), cfg.Assembly.Bitrate, logger)
	prober := ffprobe.NewProber(cfg.FFprobeBinary())

	closeFn := func() error { return nil }
	translator := InstrumentTranslator(client, m)
	if cfg.Cache.Enabled {
		store, err := cache.Open(ctx, cfg.Cache.Path)
		if err != nil {
			logging.WarnWithContext(logging.NewComponentLogger(logger, "pipeline"), "translation cache unavailable", "cache_open_failed",
				logging.String("path", cfg.Cache.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run 'kotoba cache clear' or set cache.enabled = false"),
				logging.String(logging.FieldImpact, "every sentence is translated remotely"),
			)
		} else {
			translator = cache.NewTranslator(store, cfg.OpenAI.TranslationModel, translator, logger, m.RecordCacheHit)
			closeFn = store.Close
		}
	}

	service := InstrumentTranscriber(client, m)
	newTranscriber := func(scratchDir string, onProgress func(done, total int)) Transcriber {
		return transcribe.New(service, encoder, prober, transcribe.Options{
			CeilingBytes: cfg.RequestCeilingBytes(),
			TargetBytes:  cfg.ChunkTargetBytes(),
			Band: chunkplan.Band{
				Min: time.Duration(cfg.Transcription.MinChunkSeconds) * time.Second,
				Max: time.Duration(cfg.Transcription.MaxChunkSeconds) * time.Second,
			},
			MaxDepth:   cfg.Transcription.MaxSplitDepth,
			MinSplit:   seconds(cfg.Transcription.MinSplitSeconds),
			Delay:      cfg.InterCallDelay(),
			ScratchDir: scratchDir,
			OnProgress: onProgress,
		}, logger)
	}

	p, err := New(Deps{
		NewTranscriber: newTranscriber,
		Translator:     translator,
		Synthesizer:    InstrumentSynthesizer(client, m),
		Prober:         prober,
		Renderer:       encoder,
		Metrics:        m,
		Progress:       agg,
		Logger:         logger,
	}, OptionsFromConfig(cfg))
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return p, closeFn, nil
}

func seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second))
}

func millis(value int) time.Duration {
	return time.Duration(value) * time.Millisecond
}
