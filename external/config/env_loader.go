package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/aivideoplayer/internal/config"
)

type envConfig struct {
	Env      string `env:"ENV" envDefault:"production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8000"`

	ModelsDir       string        `env:"MODELS_DIR" envDefault:"models"`
	UploadTempDir   string        `env:"UPLOAD_TEMP_DIR"`
	MaxUploadSizeMB int64         `env:"MAX_UPLOAD_SIZE_MB" envDefault:"2048"`
	SegmentPacing   time.Duration `env:"SEGMENT_PACING" envDefault:"10ms"`

	SpeechBackend      string `env:"SPEECH_BACKEND" envDefault:"faster-whisper"`
	PythonBin          string `env:"PYTHON_BIN" envDefault:"python3"`
	WhisperModelSize   string `env:"WHISPER_MODEL_SIZE" envDefault:"tiny"`
	WhisperDevice      string `env:"WHISPER_DEVICE" envDefault:"cpu"`
	WhisperComputeType string `env:"WHISPER_COMPUTE_TYPE" envDefault:"int8"`
	WhisperBeamSize    int    `env:"WHISPER_BEAM_SIZE" envDefault:"1"`
	WhisperVADFilter   bool   `env:"WHISPER_VAD_FILTER" envDefault:"true"`

	TranslationSourceLang    string `env:"TRANSLATION_SOURCE_LANG" envDefault:"en"`
	TranslationModelTemplate string `env:"TRANSLATION_MODEL_TEMPLATE" envDefault:"Helsinki-NLP/opus-mt-%s-%s"`
	TranslatorCacheSize      int    `env:"TRANSLATOR_CACHE_SIZE" envDefault:"2"`

	DatabaseURL             string `env:"DATABASE_URL"`
	TranscriptionWebhookURL string `env:"TRANSCRIPTION_WEBHOOK_URL"`
	SentryDSN               string `env:"SENTRY_DSN"`
	CORSAllowedOrigin       string `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`

	GoogleCloudProjectID       string   `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string   `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string   `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string   `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"long"`
	GoogleCloudSpeechLanguages []string `env:"GOOGLE_CLOUD_SPEECH_LANGUAGES" envSeparator:"," envDefault:"en-US"`
}

func Load() (*internalconfig.Config, error) {
	return load(env.Options{})
}

func load(opts env.Options) (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		LogLevel:                   raw.LogLevel,
		HTTPAddr:                   raw.HTTPAddr,
		ModelsDir:                  raw.ModelsDir,
		UploadTempDir:              raw.UploadTempDir,
		MaxUploadSizeMB:            raw.MaxUploadSizeMB,
		SegmentPacing:              raw.SegmentPacing,
		SpeechBackend:              raw.SpeechBackend,
		PythonBin:                  raw.PythonBin,
		WhisperModelSize:           raw.WhisperModelSize,
		WhisperDevice:              raw.WhisperDevice,
		WhisperComputeType:         raw.WhisperComputeType,
		WhisperBeamSize:            raw.WhisperBeamSize,
		WhisperVADFilter:           raw.WhisperVADFilter,
		TranslationSourceLang:      raw.TranslationSourceLang,
		TranslationModelTemplate:   raw.TranslationModelTemplate,
		TranslatorCacheSize:        raw.TranslatorCacheSize,
		DatabaseURL:                raw.DatabaseURL,
		TranscriptionWebhookURL:    raw.TranscriptionWebhookURL,
		SentryDSN:                  raw.SentryDSN,
		CORSAllowedOrigin:          raw.CORSAllowedOrigin,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		GoogleCloudSpeechLanguages: raw.GoogleCloudSpeechLanguages,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
