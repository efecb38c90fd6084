// ABOUTME: Playlist position tracking over a refreshable library snapshot
// ABOUTME: Advances cyclically and wraps the index when the library shrinks
package playlist

import (
	"context"
	"errors"

	"github.com/harper/folder-radio/internal/domain"
)

var ErrEmptyPlaylist = errors.New("playlist is empty")

// Playlist is owned by a single goroutine (the station's pacer) and is not
// safe for concurrent use.
type Playlist struct {
	library domain.Library
	tracks  []domain.Track
	index   int
}

func New(library domain.Library) *Playlist {
	return &Playlist{library: library}
}

// Refresh re-lists the library and keeps the current index, wrapped into
// range. It returns the new snapshot.
func (p *Playlist) Refresh(ctx context.Context) []domain.Track {
	p.tracks = p.library.List(ctx)
	if len(p.tracks) == 0 {
		p.index = 0
		return p.tracks
	}
	p.index %= len(p.tracks)
	return p.tracks
}

func (p *Playlist) Len() int {
	return len(p.tracks)
}

func (p *Playlist) Index() int {
	return p.index
}

func (p *Playlist) Current() (domain.Track, error) {
	if len(p.tracks) == 0 {
		return domain.Track{}, ErrEmptyPlaylist
	}
	return p.tracks[p.index], nil
}

// Advance moves to the next track, wrapping to 0 after the last one.
func (p *Playlist) Advance() int {
	if len(p.tracks) == 0 {
		p.index = 0
		return 0
	}
	p.index = (p.index + 1) % len(p.tracks)
	return p.index
}
