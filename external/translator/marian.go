package translator

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/foxseedlab/aivideoplayer/external/pyworker"
	"github.com/foxseedlab/aivideoplayer/internal/modelcache"
	"github.com/foxseedlab/aivideoplayer/internal/translator"
)

//go:embed assets/marian_worker.py
var marianScript string

// startWorker is replaced in tests.
var startWorker = pyworker.Start

type MarianConfig struct {
	PythonBin string
	ModelsDir string
	// ModelName returns the remote model identifier for a target language.
	ModelName func(targetLang string) string
}

// MarianLoader loads MarianMT translation models into worker processes. Fetched
// models are saved under the models directory so the next start finds them locally.
type MarianLoader struct {
	cfg MarianConfig
}

func NewMarianLoader(cfg MarianConfig) *MarianLoader {
	return &MarianLoader{cfg: cfg}
}

// ModelDir is where the model for targetLang is kept.
func (l *MarianLoader) ModelDir(targetLang string) string {
	return filepath.Join(l.cfg.ModelsDir, "translation_"+targetLang)
}

func (l *MarianLoader) LoadLocal(ctx context.Context, targetLang string) (translator.Translator, error) {
	dir := l.ModelDir(targetLang)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", modelcache.ErrNotAvailableLocally, dir)
		}
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	w, err := startWorker(ctx, l.spec(targetLang, dir, true, ""))
	if err != nil {
		if pyworker.HasCode(err, pyworker.CodeModelNotFound) {
			return nil, fmt.Errorf("%w: %w", modelcache.ErrNotAvailableLocally, err)
		}
		return nil, err
	}
	return &MarianTranslator{worker: w, targetLang: targetLang}, nil
}

func (l *MarianLoader) Fetch(ctx context.Context, targetLang string) (translator.Translator, error) {
	dir := l.ModelDir(targetLang)
	if err := os.MkdirAll(l.cfg.ModelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create models dir: %w", err)
	}
	w, err := startWorker(ctx, l.spec(targetLang, l.cfg.ModelName(targetLang), false, dir))
	if err != nil {
		return nil, err
	}
	return &MarianTranslator{worker: w, targetLang: targetLang}, nil
}

func (l *MarianLoader) spec(targetLang, model string, localOnly bool, saveDir string) pyworker.Spec {
	args := []string{"-u", "-c", marianScript, "--model", model}
	if localOnly {
		args = append(args, "--local-only")
	}
	if saveDir != "" {
		args = append(args, "--save-dir", saveDir)
	}
	return pyworker.Spec{Name: "marian-" + targetLang, Command: l.cfg.PythonBin, Args: args}
}

type MarianTranslator struct {
	worker     *pyworker.Worker
	targetLang string
}

type translateRequest struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

type translateReply struct {
	Text string `json:"text"`
}

func (t *MarianTranslator) Translate(ctx context.Context, text string) (string, error) {
	msg, err := t.worker.Call(ctx, translateRequest{Op: "translate", Text: text})
	if errors.Is(err, pyworker.ErrClosed) {
		return "", fmt.Errorf("marian %s: %w: %w", t.targetLang, translator.ErrClosed, err)
	}
	if err != nil {
		return "", err
	}
	if msg.Type != "translation" {
		return "", fmt.Errorf("marian %s: unexpected message %q", t.targetLang, msg.Type)
	}
	var reply translateReply
	if err := msg.Decode(&reply); err != nil {
		return "", fmt.Errorf("marian %s: decode translation: %w", t.targetLang, err)
	}
	return reply.Text, nil
}

func (t *MarianTranslator) Close() error {
	return t.worker.Close()
}
