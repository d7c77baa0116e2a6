package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"kotoba/internal/acquire"
	"kotoba/internal/config"
	"kotoba/internal/metrics"
	"kotoba/internal/pipeline"
	"kotoba/internal/preflight"
	"kotoba/internal/progress"
)

type convertFlags struct {
	separateFiles  bool
	keepTranscript bool
	noParallel     bool
	apiKey         string
	outputDir      string
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var flags convertFlags

	cmd := &cobra.Command{
		Use:   "convert <file-or-youtube-url>",
		Short: "Convert a Japanese recording into bilingual audio",
		Long: `Convert transcribes a local audio file or YouTube video, translates every
sentence into English, and writes an mp3 that plays each English sentence
before the original Japanese. By default the bilingual track is followed by
a short tone and the untouched original in a single file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyConvertFlags(cfg, cmd, flags); err != nil {
				return err
			}
			if err := cfg.ValidateCredentials(); err != nil {
				return err
			}
			if err := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); err != nil {
				return fmt.Errorf("preflight failed:\n%w", err)
			}

			logger, err := ctx.logger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			renderer := newProgressRenderer(cmd.ErrOrStderr(), logger)
			defer renderer.Close()
			agg := progress.NewDefault(renderer.Handle)
			runMetrics := metrics.New()

			downloader := acquire.NewDownloader(cfg.YTDLPBinary(), logger)
			src, err := acquire.Resolve(cmd.Context(), args[0], cfg.Paths.OutputDir, downloader, progress.NewDownloadHook(agg))
			if err != nil {
				return err
			}

			p, closePipeline, err := pipeline.FromConfig(cmd.Context(), cfg, agg, runMetrics, logger)
			if err != nil {
				return err
			}
			defer closePipeline()

			result, err := p.Run(cmd.Context(), src)
			renderer.Close()
			if err != nil {
				return err
			}
			printRunSummary(cmd.OutOrStdout(), src, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.separateFiles, "separate-files", false, "Write the bilingual track and the original as separate files")
	cmd.Flags().BoolVar(&flags.keepTranscript, "keep-transcript", false, "Keep the JSON transcript next to the audio")
	cmd.Flags().BoolVar(&flags.noParallel, "no-parallel", false, "Translate and synthesize one sentence at a time")
	cmd.Flags().StringVar(&flags.apiKey, "openai-key", "", "OpenAI API key (overrides config and OPENAI_API_KEY)")
	cmd.Flags().StringVarP(&flags.outputDir, "output", "o", "", "Output directory (overrides paths.output_dir)")
	return cmd
}

// applyConvertFlags layers explicitly set flags over the loaded config.
func applyConvertFlags(cfg *config.Config, cmd *cobra.Command, flags convertFlags) error {
	if cmd.Flags().Changed("separate-files") {
		cfg.Output.SeparateFiles = flags.separateFiles
	}
	if cmd.Flags().Changed("keep-transcript") {
		cfg.Output.KeepTranscript = flags.keepTranscript
	}
	if flags.noParallel {
		cfg.Concurrency.Parallel = false
	}
	if key := strings.TrimSpace(flags.apiKey); key != "" {
		cfg.OpenAI.APIKey = key
	}
	if dir := strings.TrimSpace(flags.outputDir); dir != "" {
		expanded, err := config.ExpandPath(dir)
		if err != nil {
			return fmt.Errorf("resolve output directory: %w", err)
		}
		cfg.Paths.OutputDir = expanded
		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}
	}
	return nil
}

func printRunSummary(out io.Writer, src acquire.Source, result pipeline.Result) {
	rows := [][]string{
		{"Title", src.Title},
		{"Channel", src.Channel},
		{"Duration", formatClock(result.Duration)},
		{"Sentences", fmt.Sprintf("%d", result.Sentences)},
		{"Translation failures", fmt.Sprintf("%d", result.TranslationFailures)},
		{"Synthesis failures", fmt.Sprintf("%d", result.SynthesisFailures)},
		{"Elapsed", result.Elapsed.Round(time.Second).String()},
	}
	for _, path := range result.Outputs.Files() {
		rows = append(rows, []string{"Output", filepath.Base(path)})
	}
	fmt.Fprintln(out, renderTable([]string{"Run", result.RunID}, rows, []columnAlignment{alignLeft, alignLeft}))
	fmt.Fprintf(out, "Saved to %s\n", src.Dir)
}
