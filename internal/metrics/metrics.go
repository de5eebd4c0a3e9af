// Package metrics provides Prometheus metrics for the voces service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FocuswithJustin/VocesDelReino/internal/logging"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Scripture metrics
	ScriptureResolutionsTotal *prometheus.CounterVec
	SearchDuration            prometheus.Histogram
	DatasetVerses             prometheus.Gauge

	// Generation metrics
	CompletionCallsTotal *prometheus.CounterVec
	CompletionDuration   *prometheus.HistogramVec
	JobsInFlight         prometheus.Gauge

	ServerStartTime time.Time
}

// New creates all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	m := &Metrics{
		registry:        reg,
		ServerStartTime: time.Now(),
	}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voces_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voces_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.ScriptureResolutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voces_scripture_resolutions_total",
			Help: "Scripture anchor resolutions by outcome",
		},
		[]string{"outcome"},
	)

	m.SearchDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voces_keyword_search_duration_seconds",
			Help:    "Duration of keyword searches over the verse store",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)

	m.DatasetVerses = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "voces_dataset_verses",
			Help: "Number of verses in the loaded dataset",
		},
	)

	m.CompletionCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voces_completion_calls_total",
			Help: "Completion backend calls by backend and outcome",
		},
		[]string{"backend", "outcome"},
	)

	m.CompletionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voces_completion_duration_seconds",
			Help:    "Duration of completion backend calls in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"backend"},
	)

	m.JobsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "voces_jobs_in_flight",
			Help: "Generation jobs queued or running",
		},
	)

	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordResolution counts one anchor resolution.
func (m *Metrics) RecordResolution(outcome string) {
	if m == nil {
		return
	}
	m.ScriptureResolutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordSearch records one keyword search.
func (m *Metrics) RecordSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(d.Seconds())
}

// SetDatasetVerses sets the loaded verse count.
func (m *Metrics) SetDatasetVerses(n int) {
	if m == nil {
		return
	}
	m.DatasetVerses.Set(float64(n))
}

// RecordCompletion records one completion call. outcome is "ok" or a short
// error class such as "rate_limited".
func (m *Metrics) RecordCompletion(backend, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.CompletionCallsTotal.WithLabelValues(backend, outcome).Inc()
	m.CompletionDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// JobStarted and JobFinished track queued or running jobs.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsInFlight.Inc()
}

func (m *Metrics) JobFinished() {
	if m == nil {
		return
	}
	m.JobsInFlight.Dec()
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := logging.WrapResponseWriter(w)

		next.ServeHTTP(rw, r)

		route := Route(r.URL.Path)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routes lists the fixed paths used as labels.
var routes = map[string]bool{
	"/":                     true,
	"/health":               true,
	"/metrics":              true,
	"/ws":                   true,
	"/jobs":                 true,
	"/api/generate":         true,
	"/api/scripture/lookup": true,
	"/api/scripture/search": true,
	"/api/scripture/parse":  true,
	"/api/chords/pitches":   true,
	"/api/songs":            true,
}

// Route maps a request path to a bounded label, collapsing IDs.
func Route(path string) string {
	switch {
	case routes[path]:
		return path
	case strings.HasPrefix(path, "/api/songs/"):
		return "/api/songs/{id}"
	case strings.HasPrefix(path, "/jobs/"):
		return "/jobs/{id}"
	}
	return "other"
}
