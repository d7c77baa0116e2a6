package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"kotoba/internal/services"
)

var bitratePattern = regexp.MustCompile(`^[0-9]+k$`)

// Validate ensures the configuration is usable. Credentials are checked
// separately by ValidateCredentials so offline commands keep working without
// an API key.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSentences(); err != nil {
		return err
	}
	if err := c.validateConcurrency(); err != nil {
		return err
	}
	if err := c.validateAssembly(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateCredentials ensures a remote API key is present.
func (c *Config) ValidateCredentials() error {
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("%w: openai.api_key is required. Set OPENAI_API_KEY env var or edit %s (create with 'kotoba config init')", services.ErrConfiguration, defaultPath)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		return errors.New("paths.scratch_dir must be set")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	if t.MaxRequestMB <= 0 {
		return errors.New("transcription.max_request_mb must be positive")
	}
	if t.SafetyMarginMB < 0 || t.SafetyMarginMB >= t.MaxRequestMB {
		return errors.New("transcription.safety_margin_mb must be non-negative and below max_request_mb")
	}
	if t.MinChunkSeconds <= 0 {
		return errors.New("transcription.min_chunk_seconds must be positive")
	}
	if t.MaxChunkSeconds < t.MinChunkSeconds {
		return errors.New("transcription.max_chunk_seconds must be >= min_chunk_seconds")
	}
	if t.MaxSplitDepth < 0 {
		return errors.New("transcription.max_split_depth must be >= 0")
	}
	if t.MinSplitSeconds <= 0 {
		return errors.New("transcription.min_split_seconds must be positive")
	}
	if t.InterCallDelayMS < 0 {
		return errors.New("transcription.inter_call_delay_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateSentences() error {
	s := c.Sentences
	if s.MaxGapSeconds <= 0 {
		return errors.New("sentences.max_gap_seconds must be positive")
	}
	if s.RestartGapSeconds < 0 {
		return errors.New("sentences.restart_gap_seconds must be >= 0")
	}
	if s.HardCapChars <= 0 {
		return errors.New("sentences.hard_cap_chars must be positive")
	}
	if s.SoftMinChars < 0 || s.SoftMinChars > s.HardCapChars {
		return errors.New("sentences.soft_min_chars must be between 0 and hard_cap_chars")
	}
	return nil
}

func (c *Config) validateConcurrency() error {
	if c.Concurrency.TranslationWorkers > maxWorkers {
		return fmt.Errorf("concurrency.translation_workers must be <= %d", maxWorkers)
	}
	if c.Concurrency.SynthesisWorkers > maxWorkers {
		return fmt.Errorf("concurrency.synthesis_workers must be <= %d", maxWorkers)
	}
	return nil
}

func (c *Config) validateAssembly() error {
	a := c.Assembly
	if a.EnglishPauseMS < 0 || a.OriginalPauseMS < 0 {
		return errors.New("assembly pauses must be >= 0")
	}
	if a.CueSilenceMS < 0 || a.CueToneMS < 0 {
		return errors.New("assembly cue durations must be >= 0")
	}
	if a.CueToneHz <= 0 || a.CueToneHz > 20000 {
		return errors.New("assembly.cue_tone_hz must be between 1 and 20000")
	}
	if !bitratePattern.MatchString(a.Bitrate) {
		return fmt.Errorf("assembly.bitrate %q must look like 192k", a.Bitrate)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not recognised", c.Logging.Level)
	}
}
