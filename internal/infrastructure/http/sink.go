// ABOUTME: Listener sink writing broadcast chunks to one HTTP response
// ABOUTME: Bounds each write with a deadline so a stalled client gets dropped
package http

import (
	"errors"
	"io"
	"net/http"
	"time"
)

type listenerSink struct {
	rc      *http.ResponseController
	out     io.Writer
	timeout time.Duration
}

func newListenerSink(w http.ResponseWriter, timeout time.Duration) *listenerSink {
	return &listenerSink{
		rc:      http.NewResponseController(w),
		out:     w,
		timeout: timeout,
	}
}

// Write sends p and flushes it. It is only called by the broadcaster, one
// call at a time, and must not retain p.
func (s *listenerSink) Write(p []byte) error {
	if s.timeout > 0 {
		err := s.rc.SetWriteDeadline(time.Now().Add(s.timeout))
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}

	if _, err := s.out.Write(p); err != nil {
		return err
	}
	return s.rc.Flush()
}
