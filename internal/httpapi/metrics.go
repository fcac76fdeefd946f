package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/session"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/stream"
)

const namespace = "colmon"

// Metrics holds the monitor's Prometheus collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	readingsIngested prometheus.Counter
	bufferLength     prometheus.Gauge
	sessionState     *prometheus.GaugeVec
	transitions      *prometheus.CounterVec
	failures         prometheus.Counter
	replayProgress   prometheus.Gauge

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers every collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		readingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_ingested_total",
			Help:      "Readings accepted by the stream store",
		}),
		bufferLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_length",
			Help:      "Readings currently held in the history buffer",
		}),
		sessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current session state, 0 otherwise",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Session state transitions by target state",
		}, []string{"to"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Sessions ended by a source failure",
		}),
		replayProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "replay_progress",
			Help:      "Completion percentage of the current session",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"path", "method", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
	}
	m.Registry.MustRegister(
		m.readingsIngested, m.bufferLength, m.sessionState, m.transitions,
		m.failures, m.replayProgress, m.httpRequestsTotal, m.httpRequestDuration,
	)
	m.setState(session.Idle)
	return m
}

// Observe returns a store subscriber that keeps the collectors current.
func (m *Metrics) Observe(st *stream.Store) func(stream.Change) {
	return func(ch stream.Change) {
		switch ch.Kind {
		case stream.ChangeIngest:
			m.readingsIngested.Inc()
		case stream.ChangeTransition:
			m.transitions.WithLabelValues(ch.State.Label()).Inc()
			if ch.Event == session.EventFail {
				m.failures.Inc()
			}
		}
		if ch.Completed && ch.Kind != stream.ChangeTransition {
			m.transitions.WithLabelValues(ch.State.Label()).Inc()
		}
		m.setState(ch.State)
		m.replayProgress.Set(ch.Progress)
		m.bufferLength.Set(float64(st.Len()))
	}
}

func (m *Metrics) setState(current session.State) {
	for _, s := range session.States() {
		v := 0.0
		if s == current {
			v = 1
		}
		m.sessionState.WithLabelValues(s.Label()).Set(v)
	}
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Middleware instruments requests by route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)

		path := routePatternOrPath(r)
		status := strconv.Itoa(sr.status)
		m.httpRequestsTotal.WithLabelValues(path, r.Method, status).Inc()
		m.httpRequestDuration.WithLabelValues(path, r.Method, status).Observe(time.Since(start).Seconds())
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
