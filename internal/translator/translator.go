package translator

import (
	"context"
	"errors"
)

// ErrClosed is returned by Translate on a translator that has been closed,
// for example after it was evicted from the model cache.
var ErrClosed = errors.New("translator closed")

// Translator translates text from the configured source language into the
// language it was loaded for.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
	Close() error
}

// Loader builds translators for a target language. LoadLocal must fail with an
// error wrapping modelcache.ErrNotAvailableLocally when the cached model is missing
// or unusable, so that the caller can fall back to Fetch.
type Loader interface {
	LoadLocal(ctx context.Context, targetLang string) (Translator, error)
	Fetch(ctx context.Context, targetLang string) (Translator, error)
}
