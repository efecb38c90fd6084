// ABOUTME: Station domain model coordinating playlist, playback clock, and listeners
// ABOUTME: Owns the lifecycle of the single pacing goroutine per station
package station

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/harper/folder-radio/internal/domain"
	"github.com/harper/folder-radio/internal/domain/playlist"
	"github.com/harper/folder-radio/internal/infrastructure/metrics"
)

const (
	DefaultBitrateKbps   = 128
	DefaultChunkDuration = 100 * time.Millisecond
	DefaultRetryDelay    = 5 * time.Second
	DefaultSettleDelay   = 100 * time.Millisecond
	DefaultWriteTimeout  = 2 * time.Second
	DefaultContentType   = "audio/mpeg"
)

var (
	ErrAlreadyStarted = errors.New("station already started")
	ErrClosed         = errors.New("station closed")
)

type Config struct {
	ID          string
	Name        string
	ContentType string
	MetaInt     int
	BitrateKbps int
	// ChunkDuration is the tick period; each tick emits one chunk of
	// BitrateKbps*1000/8 bytes per second of ChunkDuration.
	ChunkDuration time.Duration
	// RetryDelay is how long an empty library is left alone before the
	// next scan.
	RetryDelay time.Duration
	// SettleDelay follows a track that failed to open.
	SettleDelay time.Duration
	// WriteTimeout bounds a single write to one listener.
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ContentType == "" {
		c.ContentType = DefaultContentType
	}
	if c.BitrateKbps <= 0 {
		c.BitrateKbps = DefaultBitrateKbps
	}
	if c.ChunkDuration <= 0 {
		c.ChunkDuration = DefaultChunkDuration
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Name == "" {
		c.Name = c.ID
	}
	return c
}

// ChunkSize is the number of bytes emitted per tick.
func ChunkSize(bitrateKbps int, chunkDuration time.Duration) int {
	bytesPerSec := int64(bitrateKbps) * 1000 / 8
	n := int(bytesPerSec * int64(chunkDuration) / int64(time.Second))
	if n < 1 {
		n = 1
	}
	return n
}

type nowPlaying struct {
	track     domain.Track
	startedAt time.Time
}

type Station struct {
	cfg       Config
	chunkSize int

	playlist    *playlist.Playlist
	opener      domain.TrackOpener
	registry    *Registry
	broadcaster *Broadcaster
	metrics     *metrics.Metrics

	state   atomic.Int32
	current atomic.Pointer[nowPlaying]

	log     zerolog.Logger
	failLog *rate.Limiter

	// wake ends an empty-library wait early.
	wake chan struct{}

	startOnce sync.Once
	started   atomic.Bool
	done      chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config, library domain.Library, opener domain.TrackOpener, m *metrics.Metrics, log zerolog.Logger) *Station {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	log = log.With().Str("station", cfg.ID).Logger()

	registry := NewRegistry()
	registry.onChange = func(n int) { m.SetListeners(cfg.ID, n) }

	return &Station{
		cfg:         cfg,
		chunkSize:   ChunkSize(cfg.BitrateKbps, cfg.ChunkDuration),
		playlist:    playlist.New(library),
		opener:      opener,
		registry:    registry,
		broadcaster: NewBroadcaster(cfg.ID, registry, m, log),
		metrics:     m,
		log:         log,
		failLog:     rate.NewLimiter(rate.Every(time.Second), 5),
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *Station) ID() string {
	return s.cfg.ID
}

func (s *Station) Name() string {
	return s.cfg.Name
}

func (s *Station) ContentType() string {
	return s.cfg.ContentType
}

func (s *Station) MetaInt() int {
	return s.cfg.MetaInt
}

func (s *Station) BitrateKbps() int {
	return s.cfg.BitrateKbps
}

func (s *Station) WriteTimeout() time.Duration {
	return s.cfg.WriteTimeout
}

func (s *Station) ChunkSize() int {
	return s.chunkSize
}

func (s *Station) State() State {
	return State(s.state.Load())
}

// NowPlaying returns the track being streamed and when it started. ok is
// false while nothing is playing.
func (s *Station) NowPlaying() (t domain.Track, startedAt time.Time, ok bool) {
	p := s.current.Load()
	if p == nil {
		return domain.Track{}, time.Time{}, false
	}
	return p.track, p.startedAt, true
}

func (s *Station) setNowPlaying(t *domain.Track) {
	if t == nil {
		s.current.Store(nil)
		return
	}
	s.current.Store(&nowPlaying{track: *t, startedAt: time.Now()})
}

// Register adds a listener sink. It fails once the station has shut down.
func (s *Station) Register(sink domain.Sink) (*Listener, error) {
	if s.ctx.Err() != nil {
		return nil, ErrClosed
	}
	l := s.registry.Register(sink)
	s.log.Debug().Str("listener", l.ID).Int("listeners", s.registry.Count()).Msg("listener joined")
	return l, nil
}

func (s *Station) Deregister(l *Listener) {
	if l == nil {
		return
	}
	s.registry.Deregister(l.ID)
	s.log.Debug().Str("listener", l.ID).Int("listeners", s.registry.Count()).Msg("listener left")
}

// LibraryChanged reports a change in the track library. A station waiting
// on an empty library rescans immediately instead of at the end of its retry
// delay; otherwise it is a no-op, since every track start rescans anyway.
func (s *Station) LibraryChanged() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Station) ListenerCount() int {
	return s.registry.Count()
}

func (s *Station) Start() error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}
	err := ErrAlreadyStarted
	s.startOnce.Do(func() {
		err = nil
		s.started.Store(true)
		go s.run(s.ctx)
	})
	return err
}

// Shutdown stops the playback clock, waits for it to exit and releases every
// listener.
func (s *Station) Shutdown() error {
	s.cancel()
	if s.started.Load() {
		<-s.done
	}
	s.registry.closeAll()
	return nil
}
