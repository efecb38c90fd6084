// ABOUTME: Fan-out of paced chunks to every registered listener
// ABOUTME: Drops listeners whose write fails without disturbing the others
package station

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/harper/folder-radio/internal/infrastructure/metrics"
)

type Broadcaster struct {
	stationID string
	registry  *Registry
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func NewBroadcaster(stationID string, registry *Registry, m *metrics.Metrics, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		stationID: stationID,
		registry:  registry,
		metrics:   m,
		log:       log,
	}
}

// Broadcast writes chunk to every registered sink and waits for all writes
// to finish, so chunk may be reused once it returns. The registry lock is
// held throughout: listeners joining mid fan-out start with the next chunk.
func (b *Broadcaster) Broadcast(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	r := b.registry
	r.mu.Lock()

	targets := make([]*Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		targets = append(targets, l)
	}

	errs := make([]error, len(targets))
	if len(targets) == 1 {
		errs[0] = targets[0].sink.Write(chunk)
	} else if len(targets) > 1 {
		var wg sync.WaitGroup
		for i, l := range targets {
			wg.Add(1)
			go func(i int, l *Listener) {
				defer wg.Done()
				errs[i] = l.sink.Write(chunk)
			}(i, l)
		}
		wg.Wait()
	}

	dropped := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		if r.removeLocked(targets[i].ID) {
			dropped++
			b.metrics.ListenerDropped(b.stationID)
			b.log.Debug().Err(err).Str("listener", targets[i].ID).Msg("listener dropped")
		}
	}
	n := len(r.listeners)
	r.mu.Unlock()

	b.metrics.ChunkBroadcast(b.stationID, len(chunk))
	if dropped > 0 {
		r.notify(n)
	}
}
