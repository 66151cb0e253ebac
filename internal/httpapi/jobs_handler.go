package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/foxseedlab/aivideoplayer/internal/repository"
)

type jobResponse struct {
	ID                string  `json:"id"`
	Filename          string  `json:"filename"`
	FileSizeBytes     int64   `json:"file_size_bytes"`
	TargetLang        string  `json:"target_lang,omitempty"`
	Language          string  `json:"language,omitempty"`
	Status            string  `json:"status"`
	SegmentCount      int     `json:"segment_count"`
	TranslationErrors int     `json:"translation_errors"`
	Error             string  `json:"error,omitempty"`
	StartedAt         string  `json:"started_at"`
	EndedAt           *string `json:"ended_at"`
}

func toJobResponse(j *repository.Job) jobResponse {
	resp := jobResponse{
		ID:                j.ID,
		Filename:          j.Filename,
		FileSizeBytes:     j.FileSizeBytes,
		TargetLang:        j.TargetLang,
		Language:          j.Language,
		Status:            string(j.Status),
		SegmentCount:      j.SegmentCount,
		TranslationErrors: j.TranslationErrors,
		Error:             j.ErrorMessage,
		StartedAt:         j.StartedAt.UTC().Format(time.RFC3339),
	}
	if j.EndedAt != nil {
		ended := j.EndedAt.UTC().Format(time.RFC3339)
		resp.EndedAt = &ended
	}
	return resp
}

func (r *Router) handleGetJob(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	j, err := r.jobs.Get(req.Context(), id)
	if err != nil {
		slog.Error("failed to load job", "error", err, "job_id", id)
		captureError(req, err, "failed to load job")
		writeDetail(w, http.StatusInternalServerError, detailInternalError)
		return
	}
	if j == nil {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(j))
}
