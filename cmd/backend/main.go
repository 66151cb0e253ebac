package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/samber/do/v2"

	configloader "github.com/foxseedlab/aivideoplayer/external/config"
	repositoryimpl "github.com/foxseedlab/aivideoplayer/external/repository"
	transcriberimpl "github.com/foxseedlab/aivideoplayer/external/transcriber"
	translatorimpl "github.com/foxseedlab/aivideoplayer/external/translator"
	webhookimpl "github.com/foxseedlab/aivideoplayer/external/webhook"
	"github.com/foxseedlab/aivideoplayer/internal/config"
	"github.com/foxseedlab/aivideoplayer/internal/httpapi"
	"github.com/foxseedlab/aivideoplayer/internal/job"
	"github.com/foxseedlab/aivideoplayer/internal/modelcache"
	"github.com/foxseedlab/aivideoplayer/internal/repository"
	"github.com/foxseedlab/aivideoplayer/internal/transcription"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	sentryFlushWait   = 2 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "speech_backend", cfg.SpeechBackend, "models_dir", cfg.ModelsDir)

	if cfg.SentryDSN != "" {
		initSentry(cfg)
		defer sentry.Flush(sentryFlushWait)
	}

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: provisioning speech model")
	cache, err := do.Invoke[*modelcache.Cache](injector)
	if err != nil {
		slog.Error("failed to provision speech model", "error", err)
		if cfg.SentryDSN != "" {
			sentry.CaptureException(err)
			sentry.Flush(sentryFlushWait)
		}
		os.Exit(1)
	}
	slog.Info("startup: speech model ready")

	router, err := do.Invoke[*httpapi.Router](injector)
	if err != nil {
		slog.Error("failed to resolve http router", "error", err)
		os.Exit(1)
	}

	serve(cfg, router)

	slog.Info("closing models", "translators", cache.Languages())
	if err := cache.Close(); err != nil {
		slog.Error("failed to close models", "error", err)
	}
	do.MustInvoke[*job.Tracker](injector).Wait()
	do.MustInvoke[repository.JobRepository](injector).Close()
	slog.Info("shutdown complete")
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := parseLevel(cfg.LogLevel)
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func initSentry(cfg *config.Config) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
		Environment:      cfg.Env,
	})
	if err != nil {
		slog.Error("sentry init failed", "error", err)
		return
	}
	slog.Info("startup: sentry initialized")
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	translatorimpl.RegisterDI(injector)
	modelcache.RegisterDI(injector)
	transcription.RegisterDI(injector)
	job.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func serve(cfg *config.Config, router *httpapi.Router) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("startup: listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		slog.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
}
