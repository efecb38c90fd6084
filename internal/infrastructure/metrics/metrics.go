// ABOUTME: Prometheus collectors for station playback and listener fan-out
// ABOUTME: Nil-safe so stations can run without a registry in tests
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	listeners      *prometheus.GaugeVec
	listenerDrops  *prometheus.CounterVec
	chunks         *prometheus.CounterVec
	bytesBroadcast *prometheus.CounterVec
	tracksStarted  *prometheus.CounterVec
	trackFailures  *prometheus.CounterVec
	libraryEvents  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		listeners: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "radio_listeners",
				Help: "Number of connected listeners per station",
			},
			[]string{"station"},
		),
		listenerDrops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radio_listener_write_failures_total",
				Help: "Listeners dropped after a failed write",
			},
			[]string{"station"},
		),
		chunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radio_chunks_broadcast_total",
				Help: "Chunks fanned out to listeners",
			},
			[]string{"station"},
		),
		bytesBroadcast: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radio_bytes_broadcast_total",
				Help: "Audio bytes produced by the playback clock",
			},
			[]string{"station"},
		),
		tracksStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radio_tracks_started_total",
				Help: "Tracks opened for playback",
			},
			[]string{"station"},
		),
		trackFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radio_track_failures_total",
				Help: "Tracks skipped because they could not be opened or read",
			},
			[]string{"station", "stage"},
		),
		libraryEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radio_library_events_total",
				Help: "Filesystem changes observed in station libraries",
			},
			[]string{"station"},
		),
	}

	reg.MustRegister(
		m.listeners,
		m.listenerDrops,
		m.chunks,
		m.bytesBroadcast,
		m.tracksStarted,
		m.trackFailures,
		m.libraryEvents,
	)

	return m
}

func (m *Metrics) SetListeners(station string, n int) {
	if m == nil {
		return
	}
	m.listeners.WithLabelValues(station).Set(float64(n))
}

func (m *Metrics) ListenerDropped(station string) {
	if m == nil {
		return
	}
	m.listenerDrops.WithLabelValues(station).Inc()
}

func (m *Metrics) ChunkBroadcast(station string, n int) {
	if m == nil {
		return
	}
	m.chunks.WithLabelValues(station).Inc()
	m.bytesBroadcast.WithLabelValues(station).Add(float64(n))
}

func (m *Metrics) TrackStarted(station string) {
	if m == nil {
		return
	}
	m.tracksStarted.WithLabelValues(station).Inc()
}

// TrackFailed records a skipped track; stage is "open" or "read".
func (m *Metrics) TrackFailed(station, stage string) {
	if m == nil {
		return
	}
	m.trackFailures.WithLabelValues(station, stage).Inc()
}

func (m *Metrics) LibraryChanged(station string) {
	if m == nil {
		return
	}
	m.libraryEvents.WithLabelValues(station).Inc()
}
