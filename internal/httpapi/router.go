package httpapi

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"

	"github.com/foxseedlab/aivideoplayer/internal/job"
	"github.com/foxseedlab/aivideoplayer/internal/repository"
	"github.com/foxseedlab/aivideoplayer/internal/stream"
	"github.com/foxseedlab/aivideoplayer/internal/transcription"
)

const serviceMessage = "AI Video Player Backend"

type RouterConfig struct {
	UploadDir         string
	MaxUploadBytes    int64
	CORSAllowedOrigin string
}

// Transcriber produces the record stream for one stored upload.
type Transcriber interface {
	Process(ctx context.Context, audioPath, targetLang string) iter.Seq2[transcription.Record, error]
}

// Jobs tracks transcription requests.
type Jobs interface {
	Start(ctx context.Context, id, filename string, size int64, targetLang string) *job.Job
	Finish(ctx context.Context, j *job.Job, summary stream.Summary, streamErr error)
	Get(ctx context.Context, id string) (*repository.Job, error)
}

type Router struct {
	cfg         RouterConfig
	transcriber Transcriber
	emitter     *stream.Emitter
	jobs        Jobs
	mux         *http.ServeMux
}

func NewRouter(cfg RouterConfig, t Transcriber, emitter *stream.Emitter, jobs Jobs) *Router {
	r := &Router{
		cfg:         cfg,
		transcriber: t,
		emitter:     emitter,
		jobs:        jobs,
		mux:         http.NewServeMux(),
	}
	r.routes()
	return r
}

func (r *Router) routes() {
	r.mux.HandleFunc("GET /{$}", r.handleRoot)
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("POST /transcribe", r.handleTranscribe)
	r.mux.HandleFunc("GET /jobs/{id}", r.handleGetJob)
}

func (r *Router) Handler() http.Handler {
	return withRequestLogging(withSentryRecovery(withCORS(r.cfg.CORSAllowedOrigin, r.mux)))
}

func (r *Router) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": serviceMessage})
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
