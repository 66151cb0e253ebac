package repository

import "time"

type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is the metadata of one transcription request. Transcript text is not stored.
type Job struct {
	ID                string
	Filename          string
	FileSizeBytes     int64
	TargetLang        string
	Language          string
	Status            JobStatus
	SegmentCount      int
	TranslationErrors int
	ErrorMessage      string
	StartedAt         time.Time
	EndedAt           *time.Time
}
