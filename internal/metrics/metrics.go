// Package metrics exposes Prometheus collectors for the oracle, its HTTP
// surface and the relayer.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stdref/internal/oracle"
)

const namespace = "stdref"

// Metrics owns a registry and every collector registered on it.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	relayOutcomes *prometheus.CounterVec
	queries       *prometheus.CounterVec
	unauthorized  *prometheus.CounterVec

	submissions    *prometheus.CounterVec
	submitDuration prometheus.Histogram
	queueDepth     prometheus.Gauge
}

// New creates a Metrics with a fresh registry. withRuntime adds the Go and
// process collectors.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method", "path"}),
		relayOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "relay_outcomes_total",
			Help:      "Per-symbol relay results.",
		}, []string{"symbol", "outcome"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "queries_total",
			Help:      "Reference data queries by result.",
		}, []string{"result"}),
		unauthorized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "unauthorized_total",
			Help:      "Rejected privileged calls.",
		}, []string{"op"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relayer",
			Name:      "submissions_total",
			Help:      "Relayer task submissions by result.",
		}, []string{"result"}),
		submitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relayer",
			Name:      "submit_duration_seconds",
			Help:      "Duration of a relayer task including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relayer",
			Name:      "pending_tasks",
			Help:      "Tasks waiting for a free sender.",
		}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.relayOutcomes,
		m.queries,
		m.unauthorized,
		m.submissions,
		m.submitDuration,
		m.queueDepth,
	)
	if withRuntime {
		m.Registry.MustRegister(
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
			prometheus.NewGoCollector(),
		)
	}
	return m
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RelayOutcome implements oracle.Recorder.
func (m *Metrics) RelayOutcome(symbol oracle.Symbol, outcome oracle.Outcome) {
	m.relayOutcomes.WithLabelValues(string(symbol), string(outcome)).Inc()
}

// Query implements oracle.Recorder.
func (m *Metrics) Query(ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	m.queries.WithLabelValues(result).Inc()
}

// Unauthorized implements oracle.Recorder.
func (m *Metrics) Unauthorized(op string) {
	m.unauthorized.WithLabelValues(op).Inc()
}

// Submission records one finished relayer task.
func (m *Metrics) Submission(ok bool, d time.Duration) {
	result := "failed"
	if ok {
		result = "ok"
	}
	m.submissions.WithLabelValues(result).Inc()
	m.submitDuration.Observe(d.Seconds())
}

// QueueDepth sets the number of pending relayer tasks.
func (m *Metrics) QueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// InstrumentHandler wraps next with HTTP metrics collection. Paths are
// labelled by chi route pattern to keep cardinality bounded.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := routePattern(r)
		method := strings.ToUpper(r.Method)
		m.httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
