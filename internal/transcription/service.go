package transcription

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/foxseedlab/aivideoplayer/internal/transcriber"
	"github.com/foxseedlab/aivideoplayer/internal/translator"
)

// Models is the part of the model cache the service depends on.
type Models interface {
	SpeechEngine() transcriber.Engine
	Translator(ctx context.Context, targetLang string) (translator.Translator, error)
}

// EngineError is an unrecovered failure of the speech engine for one request.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("speech engine %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

type Service struct {
	models Models
	opts   transcriber.Options
}

func NewService(models Models, opts transcriber.Options) *Service {
	return &Service{models: models, opts: opts}
}

// Process transcribes the file at audioPath and yields the stream records lazily:
// LanguageInfo first, one SegmentRecord per non-empty segment, then Completion.
// An unrecovered error is yielded once and ends the sequence without Completion.
func (s *Service) Process(ctx context.Context, audioPath, targetLang string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		tr, err := s.models.SpeechEngine().Transcribe(ctx, audioPath, s.opts)
		if err != nil {
			yield(nil, &EngineError{Op: "transcribe", Err: err})
			return
		}
		defer func() {
			if err := tr.Close(); err != nil {
				slog.Warn("failed to close transcription", "error", err)
			}
		}()

		info := tr.Info()
		slog.Info("language detected", "language", info.Language, "probability", info.LanguageProbability, "duration", info.Duration)
		if !yield(LanguageInfo{Language: info.Language, Status: StatusProcessing}, nil) {
			return
		}

		for seg, err := range tr.Segments() {
			if err != nil {
				yield(nil, &EngineError{Op: "decode segment", Err: err})
				return
			}
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			text := strings.TrimSpace(seg.Text)
			if text == "" {
				continue
			}
			rec := SegmentRecord{Start: seg.Start, End: seg.End, Text: text}
			if targetLang != "" {
				translation, err := s.translate(ctx, targetLang, text)
				if err != nil {
					yield(nil, err)
					return
				}
				rec.Translation = &translation
			}
			if !yield(rec, nil) {
				return
			}
		}

		yield(Completion{Status: StatusCompleted}, nil)
	}
}

// translate returns the translated text, or TranslationErrorText when the
// translator fails on this text. Only a failure to obtain the translator is returned.
func (s *Service) translate(ctx context.Context, targetLang, text string) (string, error) {
	t, err := s.models.Translator(ctx, targetLang)
	if err != nil {
		return "", err
	}
	translated, err := t.Translate(ctx, text)
	if errors.Is(err, translator.ErrClosed) {
		// Evicted between lookup and call; the cache hands out a live one.
		if t, err = s.models.Translator(ctx, targetLang); err != nil {
			return "", err
		}
		translated, err = t.Translate(ctx, text)
	}
	if err != nil {
		slog.Warn("segment translation failed", "error", err, "target_lang", targetLang)
		return TranslationErrorText, nil
	}
	return translated, nil
}
