// ABOUTME: Route table and access logging middleware
// ABOUTME: Wires station handlers, health, and Prometheus metrics onto a gorilla/mux router
package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/harper/folder-radio/internal/application/manager"
)

// NewRouter builds the HTTP surface. gatherer may be nil to omit /metrics.
func NewRouter(mgr *manager.Manager, gatherer prometheus.Gatherer, log zerolog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(accessLog(log))

	r.Handle("/stations", NewStationsHandler(mgr)).Methods(http.MethodGet)
	r.HandleFunc("/healthz", HealthzHandler).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.Handle("/stream", NewStreamHandler(mgr, log)).Methods(http.MethodGet)
	r.Handle("/meta", NewMetaHandler(mgr)).Methods(http.MethodGet)
	r.Handle("/{station}/stream", NewStreamHandler(mgr, log)).Methods(http.MethodGet)
	r.Handle("/{station}/meta", NewMetaHandler(mgr)).Methods(http.MethodGet)

	return r
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the connection for flushes and
// write deadlines.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func accessLog(log zerolog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Int64("bytes", sw.bytes).
				Dur("took", time.Since(start)).
				Msg("http request")
		})
	}
}
