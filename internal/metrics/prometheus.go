package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "costindex"

// Recorder collects service metrics into its own registry. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	computations   *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	pointsUpserted *prometheus.CounterVec
	refreshErrors  *prometheus.CounterVec
	refreshRuns    *prometheus.HistogramVec
}

// New creates a recorder with Go runtime and process collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewRecorder(reg)
}

// NewRecorder registers the service metrics on reg.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"route", "method"},
		),
		computations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dashboard_computations_total",
				Help:      "Dashboard computations by result",
			},
			[]string{"result"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dashboard_cache_lookups_total",
				Help:      "Dashboard cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		pointsUpserted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_points_upserted_total",
				Help:      "Observations written by the refresh worker",
			},
			[]string{"series"},
		),
		refreshErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_failures_total",
				Help:      "Series that failed to refresh",
			},
			[]string{"series"},
		),
		refreshRuns: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refresh_run_duration_seconds",
				Help:      "Duration of a full refresh run",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"trigger"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) RecordComputation(result string) {
	if r == nil {
		return
	}
	r.computations.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordCacheLookup(hit bool) {
	if r == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.cacheLookups.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordPointsUpserted(series string, n int) {
	if r == nil {
		return
	}
	r.pointsUpserted.WithLabelValues(series).Add(float64(n))
}

func (r *Recorder) RecordRefreshFailure(series string) {
	if r == nil {
		return
	}
	r.refreshErrors.WithLabelValues(series).Inc()
}

func (r *Recorder) RecordRefreshRun(trigger string, d time.Duration) {
	if r == nil {
		return
	}
	r.refreshRuns.WithLabelValues(trigger).Observe(d.Seconds())
}

// Instrument wraps next, labelling samples with the registered route pattern
// to keep cardinality low.
func (r *Recorder) Instrument(route string, next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, req)

		r.httpRequests.WithLabelValues(route, req.Method, strconv.Itoa(rw.status)).Inc()
		r.httpDuration.WithLabelValues(route, req.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
