package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/foxseedlab/aivideoplayer/internal/transcription"
)

// ContentType is the media type of a newline-delimited record stream.
const ContentType = "application/x-ndjson"

// FailureDetail is the public detail of the terminal error record.
const FailureDetail = "transcription failed"

// Summary describes what an Emit call wrote.
type Summary struct {
	// Started is set once the first record has been written.
	Started           bool
	Language          string
	Segments          int
	TranslationErrors int
	Completed         bool
}

type Emitter struct {
	pacing time.Duration
}

// NewEmitter returns an Emitter that waits pacing after each segment record.
func NewEmitter(pacing time.Duration) *Emitter {
	return &Emitter{pacing: pacing}
}

// Emit writes every record as one JSON line and flushes it to the client before
// pulling the next one. When records yields an error after the stream has started,
// a Failure record is written unless the client has gone away, and the error is
// returned. An error before the first record writes nothing, so the caller can
// still answer with a plain error response.
func (e *Emitter) Emit(ctx context.Context, w io.Writer, records iter.Seq2[transcription.Record, error]) (Summary, error) {
	var summary Summary
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	flusher, _ := w.(http.Flusher)

	write := func(rec transcription.Record) error {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	for rec, err := range records {
		if err != nil {
			if summary.Started && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				if werr := write(transcription.Failure{Status: transcription.StatusError, Detail: FailureDetail}); werr != nil {
					return summary, errors.Join(err, werr)
				}
			}
			return summary, err
		}
		if err := write(rec); err != nil {
			return summary, err
		}
		summary.Started = true

		switch r := rec.(type) {
		case transcription.LanguageInfo:
			summary.Language = r.Language
		case transcription.SegmentRecord:
			summary.Segments++
			if r.Translation != nil && *r.Translation == transcription.TranslationErrorText {
				summary.TranslationErrors++
			}
			if err := e.pause(ctx); err != nil {
				return summary, err
			}
		case transcription.Completion:
			summary.Completed = true
		}
	}
	return summary, nil
}

func (e *Emitter) pause(ctx context.Context) error {
	if e.pacing <= 0 {
		return nil
	}
	timer := time.NewTimer(e.pacing)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
