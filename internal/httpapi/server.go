// Package httpapi serves the monitor's read-only HTTP surface: health, the
// current snapshot, chart series and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/projection"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/stream"
)

// SnapshotResponse is the body of GET /snapshot.
type SnapshotResponse struct {
	State     string           `json:"state"`
	Progress  float64          `json:"progress"`
	Latest    *reading.Reading `json:"latest,omitempty"`
	Count     int              `json:"count"`
	Version   uint64           `json:"version"`
	Plates    int              `json:"plates"`
	Evictions uint64           `json:"evictions"`
	LastError string           `json:"lastError,omitempty"`
}

// SeriesResponse is the body of GET /series.
type SeriesResponse struct {
	Kind    string              `json:"kind"`
	Labels  []string            `json:"labels"`
	Series  []projection.Series `json:"series"`
	Version uint64              `json:"version"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// NewMux builds the router over st. Metrics may be nil to omit /metrics.
func NewMux(st *stream.Store, m *Metrics, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(m.Middleware)
	}
	r.Use(requestLogger(log))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		snap := st.Snapshot()
		resp := SnapshotResponse{
			State:     snap.State.Label(),
			Progress:  snap.Progress,
			Count:     len(snap.Readings),
			Version:   snap.Version,
			Plates:    snap.Params.Plates,
			Evictions: snap.Evictions,
		}
		if snap.HasLatest {
			latest := snap.Latest
			resp.Latest = &latest
		}
		if snap.LastErr != nil {
			resp.LastError = snap.LastErr.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Get("/series", func(w http.ResponseWriter, r *http.Request) {
		kind := r.URL.Query().Get("kind")
		snap := st.Snapshot()
		resp := SeriesResponse{
			Labels:  projection.TimeAxis(snap.Readings),
			Version: snap.Version,
		}
		switch kind {
		case "", "temperature":
			resp.Kind = "temperature"
			resp.Series = projection.PlateSeries(snap.Readings, snap.Params.Plates)
		case "composition":
			resp.Kind = "composition"
			resp.Series = projection.CompositionSeries(snap.Readings, snap.Params.Plates)
		default:
			writeJSONError(w, http.StatusBadRequest, "kind must be temperature or composition")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	if m != nil {
		r.Get("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}).ServeHTTP)
	}

	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, h http.Handler, log zerolog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
		return err
	}
	return nil
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	log = log.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			z := log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Dur("dur", time.Since(start))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("request")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: status})
}
