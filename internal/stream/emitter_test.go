package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/aivideoplayer/internal/transcription"
)

func strPtr(s string) *string { return &s }

func seqOf(records []transcription.Record, tail error) iter.Seq2[transcription.Record, error] {
	return func(yield func(transcription.Record, error) bool) {
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
		if tail != nil {
			yield(nil, tail)
		}
	}
}

func decodeLines(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line is not standalone JSON: %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestEmit_WritesOneLinePerRecord(t *testing.T) {
	rec := httptest.NewRecorder()
	records := []transcription.Record{
		transcription.LanguageInfo{Language: "en", Status: transcription.StatusProcessing},
		transcription.SegmentRecord{Start: 0, End: 1.5, Text: "Hello <world> & co", Translation: nil},
		transcription.SegmentRecord{Start: 1.5, End: 3, Text: "Bye", Translation: strPtr("Au revoir")},
		transcription.Completion{Status: transcription.StatusCompleted},
	}

	summary, err := NewEmitter(0).Emit(context.Background(), rec, seqOf(records, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := rec.Body.String()
	if !strings.HasSuffix(body, "\n") || strings.HasPrefix(body, "[") {
		t.Fatalf("body is not newline-delimited records: %q", body)
	}
	lines := strings.Split(strings.TrimSuffix(body, "\n"), "\n")
	if lines[0] != `{"language":"en","status":"processing"}` {
		t.Fatalf("unexpected first line: %s", lines[0])
	}
	if lines[1] != `{"start":0,"end":1.5,"text":"Hello <world> & co","translation":null}` {
		t.Fatalf("unexpected segment line: %s", lines[1])
	}
	if lines[2] != `{"start":1.5,"end":3,"text":"Bye","translation":"Au revoir"}` {
		t.Fatalf("unexpected translated segment line: %s", lines[2])
	}
	if lines[3] != `{"status":"completed"}` {
		t.Fatalf("unexpected last line: %s", lines[3])
	}
	if !rec.Flushed {
		t.Fatal("expected response to be flushed")
	}
	want := Summary{Started: true, Language: "en", Segments: 2, Completed: true}
	if summary != want {
		t.Fatalf("summary = %+v, want %+v", summary, want)
	}
}

func TestEmit_CountsTranslationErrors(t *testing.T) {
	var buf bytes.Buffer
	records := []transcription.Record{
		transcription.LanguageInfo{Language: "en", Status: transcription.StatusProcessing},
		transcription.SegmentRecord{Start: 0, End: 1, Text: "a", Translation: strPtr(transcription.TranslationErrorText)},
		transcription.SegmentRecord{Start: 1, End: 2, Text: "b", Translation: strPtr("b")},
		transcription.Completion{Status: transcription.StatusCompleted},
	}
	summary, err := NewEmitter(0).Emit(context.Background(), &buf, seqOf(records, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TranslationErrors != 1 || summary.Segments != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	lines := decodeLines(t, buf.String())
	if lines[1]["translation"] != transcription.TranslationErrorText {
		t.Fatalf("sentinel not written: %v", lines[1])
	}
}

func TestEmit_ErrorWritesFailureRecord(t *testing.T) {
	var buf bytes.Buffer
	boom := &transcription.EngineError{Op: "decode segment", Err: errors.New("/tmp/upload-123.wav: corrupt")}
	records := []transcription.Record{
		transcription.LanguageInfo{Language: "en", Status: transcription.StatusProcessing},
	}

	summary, err := NewEmitter(0).Emit(context.Background(), &buf, seqOf(records, boom))
	if !errors.Is(err, boom) {
		t.Fatalf("expected engine error, got %v", err)
	}
	if summary.Completed {
		t.Fatal("summary must not be completed")
	}
	lines := decodeLines(t, buf.String())
	if len(lines) != 2 {
		t.Fatalf("expected language and failure lines, got %v", lines)
	}
	last := lines[1]
	if last["status"] != "error" || last["detail"] != FailureDetail {
		t.Fatalf("unexpected failure record: %v", last)
	}
	if strings.Contains(buf.String(), "/tmp/") {
		t.Fatal("failure record leaked an internal path")
	}
}

func TestEmit_ErrorBeforeFirstRecordWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	boom := &transcription.EngineError{Op: "transcribe", Err: errors.New("unsupported codec")}

	summary, err := NewEmitter(0).Emit(context.Background(), &buf, seqOf(nil, boom))
	if !errors.Is(err, boom) {
		t.Fatalf("expected engine error, got %v", err)
	}
	if summary.Started {
		t.Fatal("stream must not be reported as started")
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing may precede the language record, got %q", buf.String())
	}
}

func TestEmit_CanceledWritesNothingMore(t *testing.T) {
	var buf bytes.Buffer
	records := []transcription.Record{
		transcription.LanguageInfo{Language: "en", Status: transcription.StatusProcessing},
	}
	_, err := NewEmitter(0).Emit(context.Background(), &buf, seqOf(records, context.Canceled))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if lines := decodeLines(t, buf.String()); len(lines) != 1 {
		t.Fatalf("expected no failure record for a canceled stream, got %v", lines)
	}
}

func TestEmit_PacesSegments(t *testing.T) {
	var buf bytes.Buffer
	records := []transcription.Record{
		transcription.LanguageInfo{Language: "en", Status: transcription.StatusProcessing},
		transcription.SegmentRecord{Start: 0, End: 1, Text: "a"},
		transcription.SegmentRecord{Start: 1, End: 2, Text: "b"},
		transcription.SegmentRecord{Start: 2, End: 3, Text: "c"},
		transcription.Completion{Status: transcription.StatusCompleted},
	}
	started := time.Now()
	if _, err := NewEmitter(20*time.Millisecond).Emit(context.Background(), &buf, seqOf(records, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(started); elapsed < 60*time.Millisecond {
		t.Fatalf("expected pacing after each segment, finished in %s", elapsed)
	}
}

func TestEmit_PacingStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	records := func(yield func(transcription.Record, error) bool) {
		if !yield(transcription.SegmentRecord{Start: 0, End: 1, Text: "a"}, nil) {
			return
		}
		t.Error("iteration must stop once the pause is interrupted")
	}
	time.AfterFunc(10*time.Millisecond, cancel)

	started := time.Now()
	_, err := NewEmitter(time.Hour).Emit(ctx, &buf, records)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(started) > time.Second {
		t.Fatal("pause was not interrupted by cancellation")
	}
}
