// ABOUTME: Playback clock reading one fixed-size chunk per tick from the current track
// ABOUTME: Explicit state machine that advances the playlist on end of track or failure
package station

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/harper/folder-radio/internal/domain"
)

type State int32

const (
	StateStopped State = iota
	StateIdle
	StateOpening
	StateStreaming
	StateEnded
	StateEmpty
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateEnded:
		return "ended"
	case StateEmpty:
		return "empty"
	}
	return "unknown"
}

func (s *Station) setState(st State) {
	s.state.Store(int32(st))
}

// run is the only goroutine that touches the playlist, the open track and
// the chunk buffer.
func (s *Station) run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(StateStopped)
	defer s.setNowPlaying(nil)

	var (
		rc       io.ReadCloser
		track    domain.Track
		wasEmpty bool
	)
	buf := make([]byte, s.chunkSize)
	state := StateIdle

	ticker := time.NewTicker(s.cfg.ChunkDuration)
	defer ticker.Stop()
	defer func() {
		if rc != nil {
			rc.Close()
		}
	}()

	s.log.Info().
		Int("bitrate_kbps", s.cfg.BitrateKbps).
		Int("chunk_bytes", s.chunkSize).
		Dur("tick", s.cfg.ChunkDuration).
		Msg("station started")

	for {
		s.setState(state)

		switch state {
		case StateIdle:
			if ctx.Err() != nil {
				return
			}
			// Changes before this scan are already seen by it.
			select {
			case <-s.wake:
			default:
			}
			s.playlist.Refresh(ctx)
			if s.playlist.Len() == 0 {
				state = StateEmpty
				continue
			}
			wasEmpty = false
			state = StateOpening

		case StateEmpty:
			if !wasEmpty {
				s.log.Warn().Dur("retry", s.cfg.RetryDelay).Msg("library empty, waiting")
				wasEmpty = true
			}
			s.setNowPlaying(nil)
			if !s.waitRetry(ctx) {
				return
			}
			state = StateIdle

		case StateOpening:
			var err error
			track, err = s.playlist.Current()
			if err == nil {
				rc, err = s.opener.Open(ctx, track)
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.trackFailed("open", track, err)
				if !sleep(ctx, s.cfg.SettleDelay) {
					return
				}
				s.playlist.Advance()
				state = StateIdle
				continue
			}

			s.setNowPlaying(&track)
			s.metrics.TrackStarted(s.cfg.ID)
			s.log.Info().
				Str("track", track.Name).
				Str("title", track.DisplayName()).
				Int("index", s.playlist.Index()).
				Int("of", s.playlist.Len()).
				Msg("now playing")

			ticker.Reset(s.cfg.ChunkDuration)
			state = StateStreaming

		case StateStreaming:
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			n, err := io.ReadFull(rc, buf)
			if n > 0 {
				s.broadcaster.Broadcast(buf[:n])
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					s.trackFailed("read", track, err)
				}
				state = StateEnded
			}

		case StateEnded:
			if err := rc.Close(); err != nil {
				s.log.Debug().Err(err).Str("track", track.Name).Msg("close track")
			}
			rc = nil
			s.log.Debug().Str("track", track.Name).Msg("track ended")
			s.playlist.Advance()
			state = StateIdle
		}
	}
}

func (s *Station) trackFailed(stage string, t domain.Track, err error) {
	s.metrics.TrackFailed(s.cfg.ID, stage)

	ev := s.log.Debug()
	if s.failLog.Allow() {
		ev = s.log.Warn()
	}
	ev.Err(err).Str("stage", stage).Str("track", t.Name).Msg("skipping track")
}

// waitRetry waits out the retry delay, or less if the library reports a
// change. It reports false if ctx ended first.
func (s *Station) waitRetry(ctx context.Context) bool {
	t := time.NewTimer(s.cfg.RetryDelay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
	case <-s.wake:
		s.log.Debug().Msg("library changed, rescanning")
	}
	return true
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
