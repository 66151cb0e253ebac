package modelcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNotAvailableLocally reports that a model has no usable copy in the local
// models directory. It is the only local failure that triggers a remote fetch.
var ErrNotAvailableLocally = errors.New("model not available locally")

// ProvisionError is returned when a model could not be obtained from either source.
type ProvisionError struct {
	Model string
	Err   error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision model %s: %v", e.Model, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// Provision loads a model from the local cache first and falls back to remote
// only when local fails with ErrNotAvailableLocally. A nil local skips the cache.
func Provision[T any](ctx context.Context, model string, local, remote func(context.Context) (T, error)) (T, error) {
	var zero T
	if local != nil {
		started := time.Now()
		v, err := local(ctx)
		if err == nil {
			slog.Info("model loaded from local cache", "model", model, "elapsed", time.Since(started))
			return v, nil
		}
		if !errors.Is(err, ErrNotAvailableLocally) {
			return zero, &ProvisionError{Model: model, Err: fmt.Errorf("local load: %w", err)}
		}
		slog.Info("model not cached locally; fetching", "model", model, "reason", err)
	}

	started := time.Now()
	v, err := remote(ctx)
	if err != nil {
		return zero, &ProvisionError{Model: model, Err: fmt.Errorf("remote fetch: %w", err)}
	}
	slog.Info("model fetched", "model", model, "elapsed", time.Since(started))
	return v, nil
}
