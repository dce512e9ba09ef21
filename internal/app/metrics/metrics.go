package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pdf_compressor",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdf_compressor",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdf_compressor",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "path"},
	)

	compressions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdf_compressor",
			Subsystem: "compression",
			Name:      "runs_total",
			Help:      "Total number of compression requests processed.",
		},
		[]string{"quality", "status"},
	)

	compressionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdf_compressor",
			Subsystem: "compression",
			Name:      "run_duration_seconds",
			Help:      "Duration of compression requests including all passes.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
		[]string{"quality"},
	)

	bytesIn = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdf_compressor",
			Subsystem: "compression",
			Name:      "input_bytes_total",
			Help:      "Total bytes received for compression.",
		},
	)

	bytesOut = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdf_compressor",
			Subsystem: "compression",
			Name:      "output_bytes_total",
			Help:      "Total bytes produced by compression.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pdf_compressor",
			Subsystem: "pool",
			Name:      "queue_depth",
			Help:      "Number of compression tasks waiting for a worker.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		compressions,
		compressionDuration,
		bytesIn,
		bytesOut,
		queueDepth,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordCompression records the outcome of one compression request.
func RecordCompression(quality, status string, duration time.Duration, originalBytes, compressedBytes int64) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	compressions.WithLabelValues(quality, status).Inc()
	compressionDuration.WithLabelValues(quality).Observe(duration.Seconds())
	if originalBytes > 0 {
		bytesIn.Add(float64(originalBytes))
	}
	if compressedBytes > 0 {
		bytesOut.Add(float64(compressedBytes))
	}
}

// SetQueueDepth reports the number of tasks waiting for a pool worker.
func SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses job identifiers so metric cardinality stays bounded.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "jobs" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/jobs"
	}
	return "/jobs/:id"
}
