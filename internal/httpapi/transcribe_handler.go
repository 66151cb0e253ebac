package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"

	"github.com/foxseedlab/aivideoplayer/internal/stream"
	"github.com/foxseedlab/aivideoplayer/internal/upload"
)

const (
	fileField       = "file"
	targetLangField = "target_lang"
	maxFieldBytes   = 64

	detailInvalidFileType   = "Invalid file type"
	detailMissingFile       = "Missing file field"
	detailInvalidForm       = "Invalid multipart form"
	detailInvalidTargetLang = "Invalid target language"
	detailFileTooLarge      = "File too large"
	detailInternalError     = "Internal server error"
	detailTranscription     = "Transcription failed"
)

// targetLangPattern keeps the language usable as part of a model directory name.
var targetLangPattern = regexp.MustCompile(`^[a-z]{2,3}(-[a-z]{2,4})?$`)

var errMissingFile = errors.New("missing file field")

type uploadForm struct {
	upload     *upload.TempUpload
	filename   string
	targetLang string
}

// readUploadForm streams the multipart body. The file part is validated by name
// before any byte of it is written to disk. On error nothing is left on disk.
func readUploadForm(mr *multipart.Reader, dir string) (*uploadForm, error) {
	form := &uploadForm{}
	fail := func(err error) (*uploadForm, error) {
		if form.upload != nil {
			releaseUpload(form.upload)
		}
		return nil, err
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(fmt.Errorf("read part: %w", err))
		}

		switch part.FormName() {
		case fileField:
			if form.upload != nil || part.FileName() == "" {
				break
			}
			up, err := upload.Store(dir, part.FileName(), part)
			if err != nil {
				_ = part.Close()
				return fail(err)
			}
			form.upload = up
			form.filename = part.FileName()
		case targetLangField:
			b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			if err != nil {
				_ = part.Close()
				return fail(fmt.Errorf("read %s: %w", targetLangField, err))
			}
			form.targetLang = string(b)
		}
		_ = part.Close()
	}

	if form.upload == nil {
		return nil, errMissingFile
	}
	return form, nil
}

// normalizeTargetLang lowercases lang and reports whether it is acceptable.
// An empty value means no translation.
func normalizeTargetLang(lang string) (string, bool) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "", true
	}
	return lang, targetLangPattern.MatchString(lang)
}

func releaseUpload(u *upload.TempUpload) {
	if err := u.Release(); err != nil {
		slog.Error("failed to remove temp upload", "error", err, "path", u.Path())
	}
}

func (r *Router) handleTranscribe(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	req.Body = http.MaxBytesReader(w, req.Body, r.cfg.MaxUploadBytes)

	mr, err := req.MultipartReader()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, detailInvalidForm)
		return
	}
	form, err := readUploadForm(mr, r.cfg.UploadDir)
	if err != nil {
		r.writeUploadError(w, req, err)
		return
	}
	defer releaseUpload(form.upload)

	targetLang, ok := normalizeTargetLang(form.targetLang)
	if !ok {
		writeDetail(w, http.StatusBadRequest, detailInvalidTargetLang)
		return
	}

	id := requestIDFromContext(ctx)
	j := r.jobs.Start(ctx, id, form.filename, form.upload.Size(), targetLang)
	slog.Info("transcription started", "request_id", id, "filename", form.filename, "size", form.upload.Size(), "target_lang", targetLang)

	out := &ndjsonResponse{w: w}
	summary, err := r.emitter.Emit(ctx, out, r.transcriber.Process(ctx, form.upload.Path(), targetLang))
	switch {
	case errors.Is(err, context.Canceled):
		slog.Info("client disconnected during transcription", "request_id", id, "segments", summary.Segments)
	case err != nil:
		slog.Error("transcription stream failed", "error", err, "request_id", id, "segments", summary.Segments, "started", summary.Started)
		captureError(req, err, "transcription stream failed")
		if !out.started {
			writeDetail(w, http.StatusInternalServerError, detailTranscription)
		}
	}
	r.jobs.Finish(ctx, j, summary, err)
}

// ndjsonResponse commits the 200 status and streaming headers on the first
// write, so a failure before any record can still be answered with an error status.
type ndjsonResponse struct {
	w       http.ResponseWriter
	started bool
}

func (o *ndjsonResponse) Write(b []byte) (int, error) {
	if !o.started {
		o.started = true
		h := o.w.Header()
		h.Set("Content-Type", stream.ContentType)
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Accel-Buffering", "no")
		o.w.WriteHeader(http.StatusOK)
	}
	return o.w.Write(b)
}

func (o *ndjsonResponse) Flush() {
	if !o.started {
		return
	}
	if f, ok := o.w.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *Router) writeUploadError(w http.ResponseWriter, req *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, upload.ErrInvalidFileType):
		writeDetail(w, http.StatusBadRequest, detailInvalidFileType)
	case errors.Is(err, errMissingFile):
		writeDetail(w, http.StatusUnprocessableEntity, detailMissingFile)
	case errors.As(err, &tooLarge):
		writeDetail(w, http.StatusRequestEntityTooLarge, detailFileTooLarge)
	case errors.Is(err, upload.ErrStorage):
		slog.Error("failed to store upload", "error", err, "request_id", requestIDFromContext(req.Context()))
		captureError(req, err, "failed to store upload")
		writeDetail(w, http.StatusInternalServerError, detailInternalError)
	default:
		slog.Warn("failed to read upload", "error", err, "request_id", requestIDFromContext(req.Context()))
		writeDetail(w, http.StatusBadRequest, detailInvalidForm)
	}
}
