package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// AllowedExtensions are the container types accepted for transcription.
var AllowedExtensions = []string{".mp3", ".mp4", ".wav"}

var ErrInvalidFileType = errors.New("invalid file type")

// ErrStorage reports that the upload could not be stored for reasons unrelated to the client.
var ErrStorage = errors.New("upload storage unavailable")

// ValidateFilename returns the extension of name if it is allowed.
func ValidateFilename(name string) (string, error) {
	ext := filepath.Ext(filepath.Base(name))
	if !slices.Contains(AllowedExtensions, ext) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileType, name)
	}
	return ext, nil
}

// TempUpload is an uploaded file stored on local disk for the lifetime of one request.
type TempUpload struct {
	path string
	size int64

	once       sync.Once
	releaseErr error
}

// Store validates filename and copies src into a new temp file in dir that keeps
// the original extension. Nothing is written when the name is rejected.
func Store(dir, filename string, src io.Reader) (*TempUpload, error) {
	ext, err := ValidateFilename(filename)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %w", ErrStorage, err)
	}
	u := &TempUpload{path: f.Name()}

	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		if rerr := u.Release(); rerr != nil {
			slog.Warn("failed to remove partial upload", "error", rerr, "path", u.path)
		}
		return nil, fmt.Errorf("write upload: %w", err)
	}
	u.size = n
	return u, nil
}

func (u *TempUpload) Path() string {
	return u.path
}

func (u *TempUpload) Size() int64 {
	return u.size
}

// Release deletes the file if it still exists. Only the first call has an effect.
func (u *TempUpload) Release() error {
	u.once.Do(func() {
		if err := os.Remove(u.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			u.releaseErr = err
		}
	})
	return u.releaseErr
}
