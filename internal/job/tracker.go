package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/aivideoplayer/internal/modelcache"
	"github.com/foxseedlab/aivideoplayer/internal/repository"
	"github.com/foxseedlab/aivideoplayer/internal/stream"
	"github.com/foxseedlab/aivideoplayer/internal/transcription"
	"github.com/foxseedlab/aivideoplayer/internal/webhook"
)

const (
	recordTimeout  = 5 * time.Second
	webhookTimeout = 15 * time.Second

	// Stored error messages are categories. Job records are readable over the API,
	// so causes that may carry paths or worker output stay in the log.
	errorMessageClientGone   = "client disconnected"
	errorMessageIncomplete   = "stream ended without completion"
	errorMessageEngine       = "speech engine failed"
	errorMessageProvisioning = "translator provisioning failed"
	errorMessageStream       = "stream interrupted"
)

func errorCategory(err error) string {
	var engineErr *transcription.EngineError
	var provisionErr *modelcache.ProvisionError
	switch {
	case errors.Is(err, context.Canceled):
		return errorMessageClientGone
	case errors.As(err, &engineErr):
		return errorMessageEngine
	case errors.As(err, &provisionErr):
		return errorMessageProvisioning
	default:
		return errorMessageStream
	}
}

// Job is one tracked transcription request.
type Job struct {
	ID            string
	Filename      string
	FileSizeBytes int64
	TargetLang    string
	StartedAt     time.Time
}

// Tracker records the lifecycle of transcription requests in the job log and
// announces finished jobs to the webhook. Failures here never affect a response.
type Tracker struct {
	repo    repository.JobRepository
	webhook webhook.Sender
	now     func() time.Time

	pending sync.WaitGroup
}

func NewTracker(repo repository.JobRepository, wh webhook.Sender) *Tracker {
	return &Tracker{
		repo:    repo,
		webhook: wh,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (t *Tracker) Start(ctx context.Context, id, filename string, size int64, targetLang string) *Job {
	j := &Job{
		ID:            id,
		Filename:      filename,
		FileSizeBytes: size,
		TargetLang:    targetLang,
		StartedAt:     t.now(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := t.repo.CreateJob(ctx, repository.CreateJobInput{
		ID:            j.ID,
		Filename:      j.Filename,
		FileSizeBytes: j.FileSizeBytes,
		TargetLang:    j.TargetLang,
		StartedAt:     j.StartedAt,
	}); err != nil {
		slog.Error("failed to create job record", "error", err, "job_id", j.ID)
	}
	return j
}

// Finish stores the outcome of j and sends the webhook in the background.
// streamErr is the error returned by the emitter, if any.
func (t *Tracker) Finish(ctx context.Context, j *Job, summary stream.Summary, streamErr error) {
	endedAt := t.now()
	status := repository.JobStatusCompleted
	errMsg := ""
	switch {
	case streamErr != nil:
		status, errMsg = repository.JobStatusFailed, errorCategory(streamErr)
	case !summary.Completed:
		status, errMsg = repository.JobStatusFailed, errorMessageIncomplete
	}

	ctx = context.WithoutCancel(ctx)
	recordCtx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()
	if err := t.repo.FinishJob(recordCtx, repository.FinishJobInput{
		ID:                j.ID,
		Status:            status,
		Language:          summary.Language,
		SegmentCount:      summary.Segments,
		TranslationErrors: summary.TranslationErrors,
		ErrorMessage:      errMsg,
		EndedAt:           endedAt,
	}); err != nil {
		slog.Error("failed to finish job record", "error", err, "job_id", j.ID)
	}
	slog.Info("job finished", "job_id", j.ID, "status", status, "error", errMsg, "cause", streamErr, "segments", summary.Segments, "translation_errors", summary.TranslationErrors, "elapsed", endedAt.Sub(j.StartedAt))

	payload := webhook.JobSummaryPayload{
		SchemaVersion:     webhook.JobWebhookSchemaVersion,
		JobID:             j.ID,
		Filename:          j.Filename,
		Status:            string(status),
		Language:          summary.Language,
		TargetLang:        j.TargetLang,
		SegmentCount:      summary.Segments,
		TranslationErrors: summary.TranslationErrors,
		StartAt:           j.StartedAt.Format(time.RFC3339),
		EndAt:             endedAt.Format(time.RFC3339),
		DurationSeconds:   endedAt.Sub(j.StartedAt).Seconds(),
	}
	t.pending.Add(1)
	go func() {
		defer t.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, webhookTimeout)
		defer cancel()
		if err := t.webhook.SendJobSummary(ctx, payload); err != nil {
			slog.Error("failed to send job webhook", "error", err, "job_id", j.ID)
		}
	}()
}

// Get returns the job with id, or nil when it is unknown.
func (t *Tracker) Get(ctx context.Context, id string) (*repository.Job, error) {
	return t.repo.GetJob(ctx, id)
}

// Wait blocks until every webhook started by Finish has returned.
func (t *Tracker) Wait() {
	t.pending.Wait()
}
