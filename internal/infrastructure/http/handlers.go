// ABOUTME: HTTP handlers for station endpoints
// ABOUTME: Implements stream, now-playing, station listing, and health check routes
package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/harper/folder-radio/internal/application/manager"
	"github.com/harper/folder-radio/internal/domain/station"
	"github.com/harper/folder-radio/internal/infrastructure/icy"
)

// lookup resolves the {station} route variable. Routes without one serve
// the default station.
func lookup(mgr *manager.Manager, r *http.Request) *station.Station {
	id, ok := mux.Vars(r)["station"]
	if !ok {
		return mgr.Default()
	}
	return mgr.Get(id)
}

type StreamHandler struct {
	mgr *manager.Manager
	log zerolog.Logger
}

func NewStreamHandler(mgr *manager.Manager, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{mgr: mgr, log: log}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st := lookup(h.mgr, r)
	if st == nil {
		http.NotFound(w, r)
		return
	}

	wantsMetadata := r.Header.Get("Icy-MetaData") == "1" && st.MetaInt() > 0

	// No Content-Length: the body is unbounded and goes out chunked.
	w.Header().Set("Content-Type", st.ContentType())
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("icy-name", st.Name())
	w.Header().Set("icy-br", fmt.Sprintf("%d", st.BitrateKbps()))
	if wantsMetadata {
		w.Header().Set("icy-metaint", fmt.Sprintf("%d", st.MetaInt()))
	}
	w.WriteHeader(http.StatusOK)

	sink := newListenerSink(w, st.WriteTimeout())
	if err := sink.rc.Flush(); err != nil {
		return
	}
	if wantsMetadata {
		sink.out = icy.NewWriter(w, st.MetaInt(), func() string {
			t, _, ok := st.NowPlaying()
			if !ok {
				return ""
			}
			return t.DisplayName()
		})
	}

	l, err := st.Register(sink)
	if err != nil {
		return
	}
	defer st.Deregister(l)

	h.log.Debug().
		Str("station", st.ID()).
		Str("listener", l.ID).
		Str("remote", r.RemoteAddr).
		Bool("icy", wantsMetadata).
		Msg("stream opened")

	// The broadcaster does the writing; this goroutine only keeps the
	// response alive until one side goes away.
	select {
	case <-r.Context().Done():
	case <-l.Done():
	}

	h.log.Debug().Str("station", st.ID()).Str("listener", l.ID).Msg("stream closed")
}

type trackInfo struct {
	File      string `json:"file"`
	Title     string `json:"title,omitempty"`
	Artist    string `json:"artist,omitempty"`
	Display   string `json:"display"`
	StartedAt string `json:"started_at"`
}

type MetaHandler struct {
	mgr *manager.Manager
}

func NewMetaHandler(mgr *manager.Manager) *MetaHandler {
	return &MetaHandler{mgr: mgr}
}

func (h *MetaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st := lookup(h.mgr, r)
	if st == nil {
		http.NotFound(w, r)
		return
	}

	type response struct {
		ID          string     `json:"id"`
		Name        string     `json:"name"`
		State       string     `json:"state"`
		Listeners   int        `json:"listeners"`
		ContentType string     `json:"content_type"`
		BitrateKbps int        `json:"bitrate_kbps"`
		NowPlaying  *trackInfo `json:"now_playing"`
	}

	resp := response{
		ID:          st.ID(),
		Name:        st.Name(),
		State:       st.State().String(),
		Listeners:   st.ListenerCount(),
		ContentType: st.ContentType(),
		BitrateKbps: st.BitrateKbps(),
	}

	if t, startedAt, ok := st.NowPlaying(); ok {
		resp.NowPlaying = &trackInfo{
			File:      t.Name,
			Title:     t.Title,
			Artist:    t.Artist,
			Display:   t.DisplayName(),
			StartedAt: startedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, resp)
}

type StationsHandler struct {
	mgr *manager.Manager
}

func NewStationsHandler(mgr *manager.Manager) *StationsHandler {
	return &StationsHandler{mgr: mgr}
}

func (h *StationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type stationInfo struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		StreamURL string `json:"stream_url"`
		MetaURL   string `json:"meta_url"`
		Listeners int    `json:"listeners"`
		State     string `json:"state"`
		Playing   string `json:"playing,omitempty"`
	}

	stations := h.mgr.List()
	result := make([]stationInfo, 0, len(stations))

	for _, st := range stations {
		info := stationInfo{
			ID:        st.ID(),
			Name:      st.Name(),
			StreamURL: fmt.Sprintf("/%s/stream", st.ID()),
			MetaURL:   fmt.Sprintf("/%s/meta", st.ID()),
			Listeners: st.ListenerCount(),
			State:     st.State().String(),
		}
		if t, _, ok := st.NowPlaying(); ok {
			info.Playing = t.DisplayName()
		}
		result = append(result, info)
	}

	writeJSON(w, result)
}

func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	type response struct {
		OK bool `json:"ok"`
	}

	writeJSON(w, response{OK: true})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(v)
}
