package config

const (
	defaultConfigPath         = "~/.config/kotoba/config.toml"
	defaultOutputDir          = "~/Downloads/kotoba"
	defaultLogDir             = "~/.local/share/kotoba/logs"
	defaultOpenAIBaseURL      = "https://api.openai.com/v1"
	defaultTranscriptionModel = "whisper-1"
	defaultTranslationModel   = "gpt-3.5-turbo"
	defaultTTSModel           = "tts-1"
	defaultTTSVoice           = "alloy"
	defaultSourceLanguage     = "ja"
	defaultOpenAITimeout      = 120
	defaultRetryAttempts      = 4
	defaultMaxRequestMB       = 25
	defaultSafetyMarginMB     = 2
	defaultMinChunkSeconds    = 180
	defaultMaxChunkSeconds    = 600
	defaultMaxSplitDepth      = 5
	defaultMinSplitSeconds    = 1.0
	defaultInterCallDelayMS   = 500
	defaultMaxGapSeconds      = 2.0
	defaultRestartGapSeconds  = 0.8
	defaultHardCapChars       = 200
	defaultSoftMinChars       = 40
	defaultTranslationWorkers = 10
	defaultSynthesisWorkers   = 5
	defaultEnglishPauseMS     = 300
	defaultOriginalPauseMS    = 500
	defaultCueSilenceMS       = 1000
	defaultCueToneMS          = 500
	defaultCueToneHz          = 880
	defaultBitrate            = "192k"
	defaultCacheFile          = "translations.db"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogMaxSizeMB       = 50
	defaultLogMaxBackups      = 5
	defaultLogMaxAgeDays      = 30
	maxWorkers                = 64
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir(),
		},
		OpenAI: OpenAI{
			BaseURL:            defaultOpenAIBaseURL,
			TranscriptionModel: defaultTranscriptionModel,
			TranslationModel:   defaultTranslationModel,
			TTSModel:           defaultTTSModel,
			TTSVoice:           defaultTTSVoice,
			SourceLanguage:     defaultSourceLanguage,
			TimeoutSeconds:     defaultOpenAITimeout,
			RetryAttempts:      defaultRetryAttempts,
		},
		Transcription: Transcription{
			MaxRequestMB:     defaultMaxRequestMB,
			SafetyMarginMB:   defaultSafetyMarginMB,
			MinChunkSeconds:  defaultMinChunkSeconds,
			MaxChunkSeconds:  defaultMaxChunkSeconds,
			MaxSplitDepth:    defaultMaxSplitDepth,
			MinSplitSeconds:  defaultMinSplitSeconds,
			InterCallDelayMS: defaultInterCallDelayMS,
		},
		Sentences: Sentences{
			MaxGapSeconds:     defaultMaxGapSeconds,
			RestartGapSeconds: defaultRestartGapSeconds,
			HardCapChars:      defaultHardCapChars,
			SoftMinChars:      defaultSoftMinChars,
		},
		Concurrency: Concurrency{
			Parallel:           true,
			TranslationWorkers: defaultTranslationWorkers,
			SynthesisWorkers:   defaultSynthesisWorkers,
		},
		Assembly: Assembly{
			EnglishPauseMS:  defaultEnglishPauseMS,
			OriginalPauseMS: defaultOriginalPauseMS,
			CueSilenceMS:    defaultCueSilenceMS,
			CueToneMS:       defaultCueToneMS,
			CueToneHz:       defaultCueToneHz,
			Bitrate:         defaultBitrate,
		},
		Cache: Cache{
			Enabled: true,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
			Compress:   true,
		},
	}
}
