package webhook

import "context"

const JobWebhookSchemaVersion = 1

type JobSummaryPayload struct {
	SchemaVersion     int     `json:"schema_version"`
	JobID             string  `json:"job_id"`
	Filename          string  `json:"filename"`
	Status            string  `json:"status"`
	Language          string  `json:"language,omitempty"`
	TargetLang        string  `json:"target_lang,omitempty"`
	SegmentCount      int     `json:"segment_count"`
	TranslationErrors int     `json:"translation_errors"`
	StartAt           string  `json:"start_at"`
	EndAt             string  `json:"end_at"`
	DurationSeconds   float64 `json:"duration_seconds"`
}

type Sender interface {
	SendJobSummary(ctx context.Context, payload JobSummaryPayload) error
}
