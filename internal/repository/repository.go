package repository

import (
	"context"
	"time"
)

type CreateJobInput struct {
	ID            string
	Filename      string
	FileSizeBytes int64
	TargetLang    string
	StartedAt     time.Time
}

type FinishJobInput struct {
	ID                string
	Status            JobStatus
	Language          string
	SegmentCount      int
	TranslationErrors int
	ErrorMessage      string
	EndedAt           time.Time
}

type JobRepository interface {
	CreateJob(ctx context.Context, input CreateJobInput) error
	FinishJob(ctx context.Context, input FinishJobInput) error
	// GetJob returns nil, nil when the job does not exist.
	GetJob(ctx context.Context, id string) (*Job, error)
	Close()
}

// Noop discards job records. It is used when no database is configured.
type Noop struct{}

func (Noop) CreateJob(context.Context, CreateJobInput) error { return nil }
func (Noop) FinishJob(context.Context, FinishJobInput) error { return nil }
func (Noop) GetJob(context.Context, string) (*Job, error)    { return nil, nil }
func (Noop) Close()                                          {}
