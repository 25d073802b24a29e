package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"voiceforged/internal/engine"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voiceforged",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voiceforged",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "voiceforged",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)

	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voiceforged",
			Subsystem: "engine",
			Name:      "model_loads_total",
			Help:      "Model load attempts by variant and outcome",
		},
		[]string{"variant", "outcome"},
	)

	modelEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voiceforged",
			Subsystem: "engine",
			Name:      "model_evictions_total",
			Help:      "Model evictions by variant",
		},
		[]string{"variant"},
	)

	deviceFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voiceforged",
			Subsystem: "engine",
			Name:      "device_fallbacks_total",
			Help:      "Permanent downgrades to the safe device",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight,
		modelLoadsTotal, modelEvictionsTotal, deviceFallbacksTotal)
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

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePatternOrPath(r)
		method := r.Method
		httpInflight.WithLabelValues(path).Inc()
		defer httpInflight.WithLabelValues(path).Dec()

		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sr, r)
		statusLabel := strconv.Itoa(sr.status)
		dur := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(path, method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, method, statusLabel).Observe(dur)
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

// EventMetrics translates engine lifecycle events into counters. Install it
// as the engine's EventPublisher.
type EventMetrics struct{}

func (EventMetrics) Publish(e engine.Event) {
	v := string(e.Variant)
	switch e.Name {
	case engine.EventLoadDone:
		modelLoadsTotal.WithLabelValues(v, "ok").Inc()
	case engine.EventLoadError:
		modelLoadsTotal.WithLabelValues(v, "error").Inc()
	case engine.EventEvict:
		modelEvictionsTotal.WithLabelValues(v).Inc()
	case engine.EventDowngrade:
		deviceFallbacksTotal.Inc()
	}
}
