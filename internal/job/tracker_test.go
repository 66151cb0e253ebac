package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/aivideoplayer/internal/modelcache"
	"github.com/foxseedlab/aivideoplayer/internal/repository"
	"github.com/foxseedlab/aivideoplayer/internal/stream"
	"github.com/foxseedlab/aivideoplayer/internal/transcription"
	"github.com/foxseedlab/aivideoplayer/internal/webhook"
)

type mockRepository struct {
	mu        sync.Mutex
	created   []repository.CreateJobInput
	finished  []repository.FinishJobInput
	createErr error
	jobs      map[string]*repository.Job
}

func (m *mockRepository) CreateJob(_ context.Context, input repository.CreateJobInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, input)
	return m.createErr
}

func (m *mockRepository) FinishJob(_ context.Context, input repository.FinishJobInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, input)
	return nil
}

func (m *mockRepository) GetJob(_ context.Context, id string) (*repository.Job, error) {
	return m.jobs[id], nil
}

func (m *mockRepository) Close() {}

type mockSender struct {
	mu       sync.Mutex
	payloads []webhook.JobSummaryPayload
	err      error
}

func (m *mockSender) SendJobSummary(_ context.Context, payload webhook.JobSummaryPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, payload)
	return m.err
}

func newTestTracker(repo *mockRepository, wh *mockSender) *Tracker {
	tr := NewTracker(repo, wh)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	tr.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * 3 * time.Second)
	}
	return tr
}

func TestTracker_CompletedJob(t *testing.T) {
	repo := &mockRepository{}
	wh := &mockSender{}
	tr := newTestTracker(repo, wh)

	j := tr.Start(context.Background(), "job-1", "talk.mp4", 2048, "fr")
	tr.Finish(context.Background(), j, stream.Summary{Language: "en", Segments: 4, TranslationErrors: 1, Completed: true}, nil)
	tr.Wait()

	if len(repo.created) != 1 || repo.created[0].Filename != "talk.mp4" || repo.created[0].TargetLang != "fr" {
		t.Fatalf("unexpected create calls: %+v", repo.created)
	}
	got := repo.finished[0]
	if got.Status != repository.JobStatusCompleted || got.SegmentCount != 4 || got.TranslationErrors != 1 || got.Language != "en" || got.ErrorMessage != "" {
		t.Fatalf("unexpected finish input: %+v", got)
	}
	if len(wh.payloads) != 1 {
		t.Fatalf("expected one webhook, got %d", len(wh.payloads))
	}
	p := wh.payloads[0]
	if p.Status != "completed" || p.JobID != "job-1" || p.DurationSeconds != 3 || p.SchemaVersion != webhook.JobWebhookSchemaVersion {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if p.StartAt != "2026-03-01T12:00:00Z" || p.EndAt != "2026-03-01T12:00:03Z" {
		t.Fatalf("unexpected timestamps: %s %s", p.StartAt, p.EndAt)
	}
}

func TestTracker_FailedStatuses(t *testing.T) {
	tests := []struct {
		name    string
		summary stream.Summary
		err     error
		wantMsg string
	}{
		{
			name:    "engine error",
			err:     &transcription.EngineError{Op: "decode segment", Err: errors.New("/tmp/upload-1.wav: invalid data")},
			wantMsg: errorMessageEngine,
		},
		{
			name:    "translator provisioning",
			err:     &modelcache.ProvisionError{Model: "translation_fr", Err: errors.New("worker stderr: OSError")},
			wantMsg: errorMessageProvisioning,
		},
		{name: "write failure", err: errors.New("write record: broken pipe"), wantMsg: errorMessageStream},
		{name: "client gone", err: context.Canceled, wantMsg: errorMessageClientGone},
		{name: "no completion", summary: stream.Summary{Language: "en"}, wantMsg: errorMessageIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{}
			tr := newTestTracker(repo, &mockSender{})
			j := tr.Start(context.Background(), "job", "a.wav", 1, "")
			tr.Finish(context.Background(), j, tt.summary, tt.err)
			tr.Wait()

			got := repo.finished[0]
			if got.Status != repository.JobStatusFailed || got.ErrorMessage != tt.wantMsg {
				t.Fatalf("unexpected finish input: %+v", got)
			}
		})
	}
}

func TestTracker_RecordFailuresAreNotFatal(t *testing.T) {
	repo := &mockRepository{createErr: errors.New("db down")}
	wh := &mockSender{err: errors.New("webhook down")}
	tr := newTestTracker(repo, wh)

	j := tr.Start(context.Background(), "job-2", "a.mp3", 1, "")
	if j == nil || j.ID != "job-2" {
		t.Fatalf("job must be returned even when recording fails: %+v", j)
	}
	tr.Finish(context.Background(), j, stream.Summary{Completed: true}, nil)
	tr.Wait()
	if len(wh.payloads) != 1 {
		t.Fatal("webhook should still be attempted")
	}
}

func TestTracker_FinishOutlivesRequestContext(t *testing.T) {
	repo := &mockRepository{}
	wh := &mockSender{}
	tr := newTestTracker(repo, wh)

	ctx, cancel := context.WithCancel(context.Background())
	j := tr.Start(ctx, "job-3", "a.wav", 1, "")
	cancel()
	tr.Finish(ctx, j, stream.Summary{}, context.Canceled)
	tr.Wait()
	if len(repo.finished) != 1 || len(wh.payloads) != 1 {
		t.Fatal("finish must still be recorded after the request context ended")
	}
}

func TestTracker_Get(t *testing.T) {
	repo := &mockRepository{jobs: map[string]*repository.Job{"known": {ID: "known", Status: repository.JobStatusProcessing}}}
	tr := NewTracker(repo, &mockSender{})

	j, err := tr.Get(context.Background(), "known")
	if err != nil || j == nil || j.Status != repository.JobStatusProcessing {
		t.Fatalf("unexpected result: %+v %v", j, err)
	}
	j, err = tr.Get(context.Background(), "unknown")
	if err != nil || j != nil {
		t.Fatalf("expected nil job, got %+v %v", j, err)
	}
}
