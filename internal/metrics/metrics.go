package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "koshatrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "koshatrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	validationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "koshatrack_validation_total",
			Help: "Admission gate decisions by outcome.",
		},
		[]string{"outcome"},
	)

	propagationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "koshatrack_propagation_duration_seconds",
			Help:    "Wall time of batch propagation runs.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	propagationObjects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "koshatrack_propagation_objects_total",
			Help: "Objects propagated, by result.",
		},
		[]string{"result"},
	)

	screeningPairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "koshatrack_screening_pairs_total",
			Help: "Pairs processed by the conjunction screen, by disposition.",
		},
		[]string{"disposition"},
	)

	catalogAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "koshatrack_catalog_age_seconds",
			Help: "Age of the loaded TLE catalog.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(validationTotal)
	prometheus.MustRegister(propagationDuration)
	prometheus.MustRegister(propagationObjects)
	prometheus.MustRegister(screeningPairs)
	prometheus.MustRegister(catalogAge)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordValidation counts one gate decision.
func RecordValidation(outcome string) {
	validationTotal.WithLabelValues(outcome).Inc()
}

// RecordPropagation records one batch propagation run.
func RecordPropagation(duration time.Duration, success, failure int) {
	propagationDuration.Observe(duration.Seconds())
	propagationObjects.WithLabelValues("success").Add(float64(success))
	propagationObjects.WithLabelValues("failure").Add(float64(failure))
}

// RecordScreening counts pair dispositions for one screening run.
func RecordScreening(discarded, refined, flagged int) {
	screeningPairs.WithLabelValues("screened_out").Add(float64(discarded))
	screeningPairs.WithLabelValues("refined").Add(float64(refined))
	screeningPairs.WithLabelValues("flagged").Add(float64(flagged))
}

// SetCatalogAge updates the catalog age gauge.
func SetCatalogAge(seconds float64) {
	catalogAge.Set(seconds)
}

// knownRoutes are the exact paths exposed by the API.
var knownRoutes = map[string]bool{
	"/":                    true,
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/api/v1/validate":     true,
	"/api/v1/propagate":    true,
	"/api/v1/screen":       true,
	"/api/v1/catalog/load": true,
}

// normalizeRoute collapses unknown paths to a single label so bot scans
// cannot blow up metric cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
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
