package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttvsim_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ttvsim_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttvsim_runs_total",
			Help: "Simulation runs by outcome.",
		},
		[]string{"status"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ttvsim_run_duration_seconds",
			Help:    "Wall-clock duration of simulation runs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	stepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ttvsim_driver_steps_total",
			Help: "Driver steps taken across all runs.",
		},
	)

	transitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ttvsim_transits_total",
			Help: "Transit ingresses recorded across all runs.",
		},
	)

	refineIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ttvsim_refine_iterations",
			Help:    "Bisection iterations per refined ingress.",
			Buckets: prometheus.LinearBuckets(0, 2, 12),
		},
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttvsim_report_cache_requests_total",
			Help: "Report cache lookups by result.",
		},
		[]string{"result"},
	)

	activeStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ttvsim_active_streams",
			Help: "Open server-sent event streams.",
		},
	)

	catalogSystems = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ttvsim_catalog_systems",
			Help: "Systems in the loaded catalog.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		runsTotal,
		runDurationSeconds,
		stepsTotal,
		transitsTotal,
		refineIterations,
		cacheRequestsTotal,
		activeStreams,
		catalogSystems,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRun records the outcome of one simulation run.
func RecordRun(status string, steps, transits int, d time.Duration) {
	runsTotal.WithLabelValues(status).Inc()
	runDurationSeconds.Observe(d.Seconds())
	stepsTotal.Add(float64(steps))
	transitsTotal.Add(float64(transits))
}

// ObserveRefine records the bisection iterations of one ingress.
func ObserveRefine(iterations int) {
	refineIterations.Observe(float64(iterations))
}

// CacheHit counts a report cache hit.
func CacheHit() { cacheRequestsTotal.WithLabelValues("hit").Inc() }

// CacheMiss counts a report cache miss.
func CacheMiss() { cacheRequestsTotal.WithLabelValues("miss").Inc() }

// StreamOpened increments the active stream gauge.
func StreamOpened() { activeStreams.Inc() }

// StreamClosed decrements the active stream gauge.
func StreamClosed() { activeStreams.Dec() }

// SetCatalogSystems records the size of the loaded catalog.
func SetCatalogSystems(n int) { catalogSystems.Set(float64(n)) }

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so SSE streams work behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

var knownRoutes = map[string]bool{
	"/":                          true,
	"/healthz":                   true,
	"/readyz":                    true,
	"/metrics":                   true,
	"/api/v1/systems":            true,
	"/api/v1/simulations":        true,
	"/api/v1/cache/stats":        true,
	"/api/v1/stream/simulations": true,
}

// normalizeRoute maps a request path to a bounded set of labels.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	const prefix = "/api/v1/simulations/"
	if !strings.HasPrefix(path, prefix) {
		return "other"
	}
	id, suffix, _ := strings.Cut(strings.TrimPrefix(path, prefix), "/")
	if _, err := uuid.Parse(id); err != nil {
		return "other"
	}
	switch suffix {
	case "":
		return prefix + "{id}"
	case "lightcurve.png", "ttv.png":
		return prefix + "{id}/" + suffix
	default:
		return "other"
	}
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
