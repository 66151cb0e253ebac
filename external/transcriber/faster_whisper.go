package transcriber

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"github.com/foxseedlab/aivideoplayer/external/pyworker"
	"github.com/foxseedlab/aivideoplayer/internal/modelcache"
	"github.com/foxseedlab/aivideoplayer/internal/transcriber"
)

//go:embed assets/faster_whisper_worker.py
var fasterWhisperScript string

// startWorker is replaced in tests.
var startWorker = pyworker.Start

type FasterWhisperConfig struct {
	PythonBin   string
	ModelSize   string
	Device      string
	ComputeType string
	ModelsDir   string
}

func (c FasterWhisperConfig) workerSpec(localOnly bool) pyworker.Spec {
	args := []string{
		"-u", "-c", fasterWhisperScript,
		"--model", c.ModelSize,
		"--device", c.Device,
		"--compute-type", c.ComputeType,
		"--download-root", c.ModelsDir,
	}
	if localOnly {
		args = append(args, "--local-only")
	}
	return pyworker.Spec{Name: "faster-whisper", Command: c.PythonBin, Args: args}
}

type FasterWhisperEngine struct {
	worker *pyworker.Worker
}

// ProvisionFasterWhisper starts the faster-whisper worker against the models
// directory, downloading the model there when no local copy can be loaded.
func ProvisionFasterWhisper(ctx context.Context, cfg FasterWhisperConfig) (*FasterWhisperEngine, error) {
	slog.Info("provisioning speech model", "model", cfg.ModelSize, "device", cfg.Device, "compute_type", cfg.ComputeType, "models_dir", cfg.ModelsDir)
	return modelcache.Provision(ctx, "whisper-"+cfg.ModelSize,
		func(ctx context.Context) (*FasterWhisperEngine, error) {
			w, err := startWorker(ctx, cfg.workerSpec(true))
			if err != nil {
				if pyworker.HasCode(err, pyworker.CodeModelNotFound) {
					return nil, fmt.Errorf("%w: %w", modelcache.ErrNotAvailableLocally, err)
				}
				return nil, err
			}
			return &FasterWhisperEngine{worker: w}, nil
		},
		func(ctx context.Context) (*FasterWhisperEngine, error) {
			w, err := startWorker(ctx, cfg.workerSpec(false))
			if err != nil {
				return nil, err
			}
			return &FasterWhisperEngine{worker: w}, nil
		},
	)
}

type whisperRequest struct {
	Op        string `json:"op"`
	Path      string `json:"path"`
	BeamSize  int    `json:"beam_size"`
	VADFilter bool   `json:"vad_filter"`
	Language  string `json:"language,omitempty"`
}

type whisperInfo struct {
	Language            string  `json:"language"`
	LanguageProbability float64 `json:"language_probability"`
	Duration            float64 `json:"duration"`
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcribe holds the worker until the returned Transcription is closed.
func (e *FasterWhisperEngine) Transcribe(ctx context.Context, audioPath string, opts transcriber.Options) (transcriber.Transcription, error) {
	x, err := e.worker.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if err := x.Send(whisperRequest{
		Op:        "transcribe",
		Path:      audioPath,
		BeamSize:  opts.BeamSize,
		VADFilter: opts.VADFilter,
		Language:  opts.Language,
	}); err != nil {
		x.Release()
		return nil, err
	}

	msg, err := x.Next()
	if err != nil {
		x.Release()
		return nil, err
	}
	if msg.Type != "info" {
		x.Release()
		return nil, fmt.Errorf("faster-whisper: expected info message, got %q", msg.Type)
	}
	var info whisperInfo
	if err := msg.Decode(&info); err != nil {
		x.Release()
		return nil, fmt.Errorf("faster-whisper: decode info: %w", err)
	}
	return &whisperTranscription{
		x: x,
		info: transcriber.Info{
			Language:            info.Language,
			LanguageProbability: info.LanguageProbability,
			Duration:            info.Duration,
		},
	}, nil
}

func (e *FasterWhisperEngine) Close() error {
	return e.worker.Close()
}

type whisperTranscription struct {
	x    *pyworker.Exchange
	info transcriber.Info

	mu       sync.Mutex
	consumed bool
	finished bool
	closed   bool
}

func (t *whisperTranscription) Info() transcriber.Info {
	return t.info
}

func (t *whisperTranscription) Segments() iter.Seq2[transcriber.Segment, error] {
	return func(yield func(transcriber.Segment, error) bool) {
		t.mu.Lock()
		if t.consumed || t.closed {
			t.mu.Unlock()
			yield(transcriber.Segment{}, transcriber.ErrSegmentsConsumed)
			return
		}
		t.consumed = true
		t.mu.Unlock()

		for {
			seg, done, err := t.next()
			if err != nil {
				yield(transcriber.Segment{}, err)
				return
			}
			if done {
				return
			}
			if !yield(seg, nil) {
				return
			}
		}
	}
}

func (t *whisperTranscription) next() (transcriber.Segment, bool, error) {
	msg, err := t.x.Next()
	if err != nil {
		t.markFinished()
		return transcriber.Segment{}, true, err
	}
	switch msg.Type {
	case "segment":
		var seg whisperSegment
		if err := msg.Decode(&seg); err != nil {
			return transcriber.Segment{}, false, fmt.Errorf("faster-whisper: decode segment: %w", err)
		}
		return transcriber.Segment{Start: seg.Start, End: seg.End, Text: seg.Text}, false, nil
	case "done":
		t.markFinished()
		return transcriber.Segment{}, true, nil
	default:
		return transcriber.Segment{}, false, fmt.Errorf("faster-whisper: unexpected message %q", msg.Type)
	}
}

func (t *whisperTranscription) markFinished() {
	t.mu.Lock()
	t.finished = true
	t.mu.Unlock()
}

// Close reads the rest of an unfinished run so the worker is ready for the next
// request, then releases it.
func (t *whisperTranscription) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	finished := t.finished
	t.mu.Unlock()
	defer t.x.Release()

	if finished {
		return nil
	}
	skipped := 0
	for {
		msg, err := t.x.Next()
		if err != nil {
			var remote *pyworker.RemoteError
			if errors.As(err, &remote) {
				return nil
			}
			return err
		}
		if msg.Type == "done" {
			if skipped > 0 {
				slog.Debug("discarded unread segments", "count", skipped)
			}
			return nil
		}
		skipped++
	}
}
