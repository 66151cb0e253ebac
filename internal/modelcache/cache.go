package modelcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/foxseedlab/aivideoplayer/internal/transcriber"
	"github.com/foxseedlab/aivideoplayer/internal/translator"
)

// translatorLoadTimeout bounds a shared translator load, which may include a
// first-time model download.
const translatorLoadTimeout = 30 * time.Minute

// Cache owns the process-wide speech engine and a bounded set of translators
// keyed by target language.
type Cache struct {
	speech      transcriber.Engine
	loader      translator.Loader
	translators *lru.Cache[string, translator.Translator]
	loads       singleflight.Group
}

func New(speech transcriber.Engine, loader translator.Loader, size int) (*Cache, error) {
	if speech == nil {
		return nil, errors.New("modelcache: speech engine is required")
	}
	translators, err := lru.NewWithEvict(size, func(lang string, t translator.Translator) {
		slog.Info("evicting translator", "target_lang", lang)
		if err := t.Close(); err != nil {
			slog.Warn("failed to close evicted translator", "error", err, "target_lang", lang)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("modelcache: create translator cache: %w", err)
	}
	return &Cache{
		speech:      speech,
		loader:      loader,
		translators: translators,
	}, nil
}

func (c *Cache) SpeechEngine() transcriber.Engine {
	return c.speech
}

// Translator returns the translator for targetLang, provisioning it on first use.
// Concurrent callers asking for the same language share one load.
func (c *Cache) Translator(ctx context.Context, targetLang string) (translator.Translator, error) {
	if t, ok := c.translators.Get(targetLang); ok {
		return t, nil
	}
	if c.loader == nil {
		return nil, errors.New("modelcache: translation is not configured")
	}

	ch := c.loads.DoChan(targetLang, func() (any, error) {
		if t, ok := c.translators.Get(targetLang); ok {
			return t, nil
		}
		// The load is shared by every waiting request, so it must not end with
		// the request that happened to start it.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), translatorLoadTimeout)
		defer cancel()

		slog.Info("loading translator", "target_lang", targetLang)
		t, err := Provision(ctx, "translation_"+targetLang,
			func(ctx context.Context) (translator.Translator, error) {
				return c.loader.LoadLocal(ctx, targetLang)
			},
			func(ctx context.Context) (translator.Translator, error) {
				return c.loader.Fetch(ctx, targetLang)
			},
		)
		if err != nil {
			return nil, err
		}
		c.translators.Add(targetLang, t)
		return t, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(translator.Translator), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Languages lists cached target languages from most to least recently used.
func (c *Cache) Languages() []string {
	keys := c.translators.Keys()
	out := make([]string, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		out = append(out, keys[i])
	}
	return out
}

func (c *Cache) Close() error {
	c.translators.Purge()
	return c.speech.Close()
}
