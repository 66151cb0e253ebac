package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	SpeechBackendFasterWhisper = "faster-whisper"
	SpeechBackendGoogleCloud   = "google-cloud"
)

var logLevels = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "warning": {}, "error": {}}

var langCodePattern = regexp.MustCompile(`^[a-z]{2,3}$`)

type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	ModelsDir       string
	UploadTempDir   string
	MaxUploadSizeMB int64
	SegmentPacing   time.Duration

	SpeechBackend      string
	PythonBin          string
	WhisperModelSize   string
	WhisperDevice      string
	WhisperComputeType string
	WhisperBeamSize    int
	WhisperVADFilter   bool

	TranslationSourceLang    string
	TranslationModelTemplate string
	TranslatorCacheSize      int

	DatabaseURL             string
	TranscriptionWebhookURL string
	SentryDSN               string
	CORSAllowedOrigin       string

	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	GoogleCloudSpeechLanguages []string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok {
		return fmt.Errorf("LOG_LEVEL is invalid: %q", c.LogLevel)
	}
	if c.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive, got %d", c.MaxUploadSizeMB)
	}
	if c.SegmentPacing < 0 {
		return fmt.Errorf("SEGMENT_PACING must not be negative, got %s", c.SegmentPacing)
	}
	if c.WhisperBeamSize < 1 {
		return fmt.Errorf("WHISPER_BEAM_SIZE must be >= 1, got %d", c.WhisperBeamSize)
	}
	if c.TranslatorCacheSize < 1 {
		return fmt.Errorf("TRANSLATOR_CACHE_SIZE must be >= 1, got %d", c.TranslatorCacheSize)
	}
	if !langCodePattern.MatchString(c.TranslationSourceLang) {
		return fmt.Errorf("TRANSLATION_SOURCE_LANG is invalid: %q", c.TranslationSourceLang)
	}
	if strings.Count(c.TranslationModelTemplate, "%s") != 2 {
		return fmt.Errorf("TRANSLATION_MODEL_TEMPLATE must contain two %%s verbs, got %q", c.TranslationModelTemplate)
	}

	switch c.SpeechBackend {
	case SpeechBackendFasterWhisper:
	case SpeechBackendGoogleCloud:
		if c.GoogleCloudProjectID == "" || c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_CREDENTIALS_JSON are required when SPEECH_BACKEND=%s", SpeechBackendGoogleCloud)
		}
		if len(c.GoogleCloudSpeechLanguages) == 0 {
			return fmt.Errorf("GOOGLE_CLOUD_SPEECH_LANGUAGES must not be empty")
		}
	default:
		return fmt.Errorf("SPEECH_BACKEND is invalid: %q", c.SpeechBackend)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_ADDR", value: c.HTTPAddr},
		{name: "MODELS_DIR", value: c.ModelsDir},
		{name: "PYTHON_BIN", value: c.PythonBin},
		{name: "WHISPER_MODEL_SIZE", value: c.WhisperModelSize},
		{name: "TRANSLATION_SOURCE_LANG", value: c.TranslationSourceLang},
		{name: "TRANSLATION_MODEL_TEMPLATE", value: c.TranslationModelTemplate},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// TranslationModelName returns the remote model identifier for translating into targetLang.
func (c *Config) TranslationModelName(targetLang string) string {
	return fmt.Sprintf(c.TranslationModelTemplate, c.TranslationSourceLang, targetLang)
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadSizeMB << 20
}
