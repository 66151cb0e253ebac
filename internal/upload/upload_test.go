package upload

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		wantExt string
		wantErr bool
	}{
		{"mp3", "talk.mp3", ".mp3", false},
		{"mp4", "clip.final.mp4", ".mp4", false},
		{"wav", "silence.wav", ".wav", false},
		{"txt", "notes.txt", "", true},
		{"no extension", "README", "", true},
		{"uppercase", "TALK.MP3", "", true},
		{"extension only in dir", "audio.wav/file", "", true},
		{"trailing dot", "talk.mp3.", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := ValidateFilename(tt.file)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFileType) {
					t.Fatalf("expected ErrInvalidFileType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ext != tt.wantExt {
				t.Fatalf("ext = %q, want %q", ext, tt.wantExt)
			}
		})
	}
}

func TestStore_WritesFileWithExtension(t *testing.T) {
	dir := t.TempDir()
	u, err := Store(dir, "meeting.wav", strings.NewReader("RIFF...."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(u.Path()) != dir {
		t.Fatalf("temp file created outside dir: %s", u.Path())
	}
	if filepath.Ext(u.Path()) != ".wav" {
		t.Fatalf("extension not preserved: %s", u.Path())
	}
	body, err := os.ReadFile(u.Path())
	if err != nil {
		t.Fatalf("failed to read temp file: %v", err)
	}
	if string(body) != "RIFF...." || u.Size() != int64(len(body)) {
		t.Fatalf("unexpected content %q size %d", body, u.Size())
	}

	if err := u.Release(); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
	if _, err := os.Stat(u.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected temp file to be removed, stat err = %v", err)
	}
	if err := u.Release(); err != nil {
		t.Fatalf("second release should be a no-op, got %v", err)
	}
}

func TestStore_RejectsBeforeWriting(t *testing.T) {
	dir := t.TempDir()
	src := &countingReader{r: strings.NewReader("hello")}
	if _, err := Store(dir, "notes.txt", src); !errors.Is(err, ErrInvalidFileType) {
		t.Fatalf("expected ErrInvalidFileType, got %v", err)
	}
	if src.reads != 0 {
		t.Fatalf("expected body not to be read, got %d reads", src.reads)
	}
	assertEmptyDir(t, dir)
}

func TestStore_RemovesPartialFileOnCopyError(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("connection reset")
	src := io.MultiReader(strings.NewReader("partial"), &failingReader{err: boom})
	if _, err := Store(dir, "talk.mp3", src); !errors.Is(err, boom) {
		t.Fatalf("expected copy error, got %v", err)
	}
	assertEmptyDir(t, dir)
}

func TestRelease_FileAlreadyGone(t *testing.T) {
	dir := t.TempDir()
	u, err := Store(dir, "talk.mp3", strings.NewReader("id3"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.Remove(u.Path()); err != nil {
		t.Fatalf("failed to remove: %v", err)
	}
	if err := u.Release(); err != nil {
		t.Fatalf("release of missing file should succeed, got %v", err)
	}
}

type countingReader struct {
	r     io.Reader
	reads int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads++
	return c.r.Read(p)
}

type failingReader struct {
	err error
}

func (f *failingReader) Read(_ []byte) (int, error) {
	return 0, f.err
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files in %s, found %d", dir, len(entries))
	}
}

func TestStore_MissingDirIsStorageError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	_, err := Store(dir, "talk.mp3", strings.NewReader("ID3"))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}
