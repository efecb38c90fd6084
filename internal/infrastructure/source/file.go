// ABOUTME: Local file track source for the playback clock
// ABOUTME: Opens listed tracks read-only and rejects non-regular files
package source

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/harper/folder-radio/internal/domain"
)

type File struct{}

func NewFile() *File {
	return &File{}
}

func (File) Open(ctx context.Context, t domain.Track) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(t.Path)
	if err != nil {
		return nil, fmt.Errorf("open track: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat track: %w", err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("open track %s: not a regular file", t.Name)
	}

	return f, nil
}
