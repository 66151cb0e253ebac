package transcriber

import (
	"context"
	"errors"
	"iter"
	"sync"
)

// ErrSegmentsConsumed is yielded when Segments is iterated a second time.
var ErrSegmentsConsumed = errors.New("transcriber: segments already consumed")

// Segment is a contiguous span of recognized speech. Times are seconds from the start of the file.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Info is the language identification result of a transcription run.
type Info struct {
	Language            string
	LanguageProbability float64
	Duration            float64
}

type Options struct {
	BeamSize  int
	VADFilter bool
	// Language forces the source language; empty means auto-detect.
	Language string
}

// Transcription is a single engine run. Segments are decoded lazily as they are
// pulled and can be iterated only once. Close must be called when the caller is done,
// whether or not the segments were fully consumed.
type Transcription interface {
	Info() Info
	Segments() iter.Seq2[Segment, error]
	Close() error
}

type Engine interface {
	Transcribe(ctx context.Context, audioPath string, opts Options) (Transcription, error)
	Close() error
}

// FromSlice wraps already decoded segments as a Transcription.
func FromSlice(info Info, segments []Segment) Transcription {
	return &sliceTranscription{info: info, segments: segments}
}

type sliceTranscription struct {
	info     Info
	segments []Segment

	mu       sync.Mutex
	consumed bool
}

func (t *sliceTranscription) Info() Info {
	return t.info
}

func (t *sliceTranscription) Segments() iter.Seq2[Segment, error] {
	return func(yield func(Segment, error) bool) {
		t.mu.Lock()
		consumed := t.consumed
		t.consumed = true
		t.mu.Unlock()
		if consumed {
			yield(Segment{}, ErrSegmentsConsumed)
			return
		}
		for _, seg := range t.segments {
			if !yield(seg, nil) {
				return
			}
		}
	}
}

func (t *sliceTranscription) Close() error {
	return nil
}
