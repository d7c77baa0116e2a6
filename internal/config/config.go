package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir  string `toml:"output_dir"`
	ScratchDir string `toml:"scratch_dir"`
	LogDir     string `toml:"log_dir"`
	StateDir   string `toml:"state_dir"`
}

// OpenAI contains connection and model settings for the remote speech and
// translation services.
type OpenAI struct {
	APIKey             string `toml:"api_key"`
	BaseURL            string `toml:"base_url"`
	TranscriptionModel string `toml:"transcription_model"`
	TranslationModel   string `toml:"translation_model"`
	TTSModel           string `toml:"tts_model"`
	TTSVoice           string `toml:"tts_voice"`
	SourceLanguage     string `toml:"source_language"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	RetryAttempts      int    `toml:"retry_attempts"`
}

// Transcription contains the request-size ceiling and the split bounds used by
// the transcription adapter.
type Transcription struct {
	MaxRequestMB     int     `toml:"max_request_mb"`
	SafetyMarginMB   int     `toml:"safety_margin_mb"`
	MinChunkSeconds  int     `toml:"min_chunk_seconds"`
	MaxChunkSeconds  int     `toml:"max_chunk_seconds"`
	MaxSplitDepth    int     `toml:"max_split_depth"`
	MinSplitSeconds  float64 `toml:"min_split_seconds"`
	InterCallDelayMS int     `toml:"inter_call_delay_ms"`
}

// Sentences contains the thresholds used to coalesce fragments into sentences.
type Sentences struct {
	MaxGapSeconds     float64 `toml:"max_gap_seconds"`
	RestartGapSeconds float64 `toml:"restart_gap_seconds"`
	HardCapChars      int     `toml:"hard_cap_chars"`
	SoftMinChars      int     `toml:"soft_min_chars"`
}

// Concurrency controls the worker pools used for translation and synthesis.
type Concurrency struct {
	Parallel           bool `toml:"parallel"`
	TranslationWorkers int  `toml:"translation_workers"`
	SynthesisWorkers   int  `toml:"synthesis_workers"`
}

// Assembly contains pause and cue settings for the bilingual track.
type Assembly struct {
	EnglishPauseMS  int    `toml:"english_pause_ms"`
	OriginalPauseMS int    `toml:"original_pause_ms"`
	CueSilenceMS    int    `toml:"cue_silence_ms"`
	CueToneMS       int    `toml:"cue_tone_ms"`
	CueToneHz       int    `toml:"cue_tone_hz"`
	Bitrate         string `toml:"bitrate"`
}

// Output controls which artifacts survive a run.
type Output struct {
	KeepTranscript bool `toml:"keep_transcript"`
	SeparateFiles  bool `toml:"separate_files"`
}

// Cache contains configuration for the translation cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Metrics contains configuration for run metrics export.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Config encapsulates all configuration values for kotoba.
//
// Configuration sections by subsystem:
//   - Paths: output, scratch, log, and state directories
//   - OpenAI: remote speech-to-text, translation, and speech synthesis
//   - Transcription: request ceiling and recursive split bounds
//   - Sentences: fragment merge thresholds
//   - Concurrency: translation and synthesis worker pools
//   - Assembly: pauses and the cue between bilingual and original audio
//   - Output: transcript retention and separate/combined output
//   - Cache: SQLite translation cache
//   - Metrics: Prometheus textfile export
//   - Logging: log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	OpenAI        OpenAI        `toml:"openai"`
	Transcription Transcription `toml:"transcription"`
	Sentences     Sentences     `toml:"sentences"`
	Concurrency   Concurrency   `toml:"concurrency"`
	Assembly      Assembly      `toml:"assembly"`
	Output        Output        `toml:"output"`
	Cache         Cache         `toml:"cache"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("kotoba.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.ScratchDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for slicing and rendering.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// YTDLPBinary returns the yt-dlp executable name used for URL acquisition.
func (c *Config) YTDLPBinary() string {
	return "yt-dlp"
}

// RequestCeilingBytes returns the transcription request ceiling in bytes.
func (c *Config) RequestCeilingBytes() int64 {
	return int64(c.Transcription.MaxRequestMB) * 1024 * 1024
}

// ChunkTargetBytes returns the ceiling minus the configured safety margin.
func (c *Config) ChunkTargetBytes() int64 {
	return int64(c.Transcription.MaxRequestMB-c.Transcription.SafetyMarginMB) * 1024 * 1024
}

// InterCallDelay returns the pause applied between transcription calls.
func (c *Config) InterCallDelay() time.Duration {
	return time.Duration(c.Transcription.InterCallDelayMS) * time.Millisecond
}

// Workers returns the translation and synthesis pool sizes, honouring the
// parallel toggle.
func (c *Config) Workers() (translation, synthesis int) {
	if !c.Concurrency.Parallel {
		return 1, 1
	}
	return c.Concurrency.TranslationWorkers, c.Concurrency.SynthesisWorkers
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "kotoba")
	}
	return "~/.local/state/kotoba"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
