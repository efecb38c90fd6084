// ABOUTME: Domain types and interfaces for dependency inversion
// ABOUTME: Lets the station depend on abstractions for the library, files, and listeners
package domain

import (
	"context"
	"io"
	"path/filepath"
	"strings"
)

// Track identifies one playable file. It is immutable once listed.
type Track struct {
	Path   string
	Name   string
	Title  string
	Artist string
}

// DisplayName is what listeners see as the stream title.
func (t Track) DisplayName() string {
	switch {
	case t.Artist != "" && t.Title != "":
		return t.Artist + " - " + t.Title
	case t.Title != "":
		return t.Title
	}
	return strings.TrimSuffix(t.Name, filepath.Ext(t.Name))
}

// Library enumerates eligible audio files in a stable order.
// Listing errors are absorbed: an unreadable library is an empty one.
type Library interface {
	List(ctx context.Context) []Track
}

// TrackOpener opens a listed track for sequential reading.
type TrackOpener interface {
	Open(ctx context.Context, t Track) (io.ReadCloser, error)
}

// Sink is the write end of one connected listener.
type Sink interface {
	Write(p []byte) error
}
