// ABOUTME: Tests for the local file track source
// ABOUTME: Verifies reads and error cases
package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/harper/folder-radio/internal/domain"
)

func TestFile_Open(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	if err := os.WriteFile(path, []byte("audio data"), 0o644); err != nil {
		t.Fatalf("write track: %v", err)
	}

	rc, err := NewFile().Open(context.Background(), domain.Track{Path: path, Name: "song.mp3"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "audio data" {
		t.Errorf("expected 'audio data', got %q", data)
	}
}

func TestFile_OpenMissing(t *testing.T) {
	_, err := NewFile().Open(context.Background(), domain.Track{Path: "/nonexistent/x.mp3"})
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFile_OpenDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := NewFile().Open(context.Background(), domain.Track{Path: dir, Name: "dir"})
	if err == nil {
		t.Error("expected error for directory")
	}
}

func TestFile_OpenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFile().Open(ctx, domain.Track{Path: "/whatever"})
	if err == nil {
		t.Error("expected error for canceled context")
	}
}
