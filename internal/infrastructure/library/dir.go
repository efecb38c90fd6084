// ABOUTME: Directory-backed audio library listing files by extension
// ABOUTME: Reads display tags once per file version and watches for changes
package library

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/harper/folder-radio/internal/domain"
)

const (
	watchBackoffBase = 500 * time.Millisecond
	watchBackoffMax  = 30 * time.Second
)

type Config struct {
	Dir        string
	Extensions []string
	// OnChange is called for every event on an eligible file seen by Watch.
	OnChange func(name string)
}

type tagEntry struct {
	modTime time.Time
	size    int64
	title   string
	artist  string
}

type Dir struct {
	dir      string
	exts     map[string]struct{}
	onChange func(string)
	log      zerolog.Logger

	mu   sync.Mutex
	tags map[string]tagEntry
}

func NewDir(cfg Config, log zerolog.Logger) *Dir {
	exts := make(map[string]struct{}, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}
	if len(exts) == 0 {
		exts[".mp3"] = struct{}{}
	}

	return &Dir{
		dir:      cfg.Dir,
		exts:     exts,
		onChange: cfg.OnChange,
		log:      log.With().Str("dir", cfg.Dir).Logger(),
		tags:     make(map[string]tagEntry),
	}
}

func (d *Dir) Path() string {
	return d.dir
}

// List returns eligible files sorted by name. A listing error is logged and
// yields an empty slice.
func (d *Dir) List(ctx context.Context) []domain.Track {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		d.log.Warn().Err(err).Msg("list library")
		return nil
	}

	tracks := make([]domain.Track, 0, len(entries))
	for _, e := range entries {
		if ctx.Err() != nil {
			return nil
		}
		if e.IsDir() || !d.eligible(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		path := filepath.Join(d.dir, e.Name())
		title, artist := d.readTags(path, info)
		tracks = append(tracks, domain.Track{
			Path:   path,
			Name:   e.Name(),
			Title:  title,
			Artist: artist,
		})
	}

	sort.Slice(tracks, func(i, j int) bool { return tracks[i].Name < tracks[j].Name })
	return tracks
}

func (d *Dir) eligible(name string) bool {
	_, ok := d.exts[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (d *Dir) readTags(path string, info os.FileInfo) (title, artist string) {
	d.mu.Lock()
	cached, ok := d.tags[path]
	d.mu.Unlock()
	if ok && cached.size == info.Size() && cached.modTime.Equal(info.ModTime()) {
		return cached.title, cached.artist
	}

	entry := tagEntry{modTime: info.ModTime(), size: info.Size()}
	if f, err := os.Open(path); err == nil {
		if md, err := tag.ReadFrom(f); err == nil {
			entry.title = strings.TrimSpace(md.Title())
			entry.artist = strings.TrimSpace(md.Artist())
		}
		f.Close()
	}

	d.mu.Lock()
	d.tags[path] = entry
	d.mu.Unlock()

	return entry.title, entry.artist
}

func (d *Dir) forget(path string) {
	d.mu.Lock()
	delete(d.tags, path)
	d.mu.Unlock()
}

// Watch follows filesystem events in the library directory until ctx is
// done. Each eligible event drops the file's cached tags and is passed to
// OnChange, which lets a station waiting on an empty library rescan at once.
// The watcher is recreated with backoff if it breaks.
func (d *Dir) Watch(ctx context.Context) {
	backoff := watchBackoffBase

	wait := func() bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > watchBackoffMax {
			backoff = watchBackoffMax
		}
		return true
	}

	for ctx.Err() == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			d.log.Warn().Err(err).Msg("library watch init")
			if !wait() {
				return
			}
			continue
		}
		if err := w.Add(d.dir); err != nil {
			w.Close()
			d.log.Warn().Err(err).Msg("library watch add")
			if !wait() {
				return
			}
			continue
		}

		backoff = watchBackoffBase
		d.log.Debug().Msg("library watcher started")

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				w.Close()
				return
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if !d.eligible(ev.Name) {
					continue
				}
				d.forget(ev.Name)
				d.log.Debug().Str("file", filepath.Base(ev.Name)).Str("op", ev.Op.String()).Msg("library changed")
				if d.onChange != nil {
					d.onChange(ev.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				d.log.Warn().Err(err).Msg("library watch")
			}
		}

		w.Close()
		if !wait() {
			return
		}
	}
}
