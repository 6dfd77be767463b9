package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics contains Prometheus metrics for the API server.
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
	rateLimited     prometheus.Counter
	duplicateFrames prometheus.Counter
}

// NewHTTPMetrics creates and registers the API metrics.
func NewHTTPMetrics(registry *prometheus.Registry) (*HTTPMetrics, error) {
	m := &HTTPMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *HTTPMetrics) initMetrics() {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sightline_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"}, // path is the route template, e.g. /api/v1/frames
	)
	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sightline_http_request_duration_seconds",
			Help:    "Time taken for HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	m.requestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sightline_http_request_errors_total",
			Help: "HTTP requests answered with an error",
		},
		[]string{"method", "path", "error_type"},
	)
	m.rateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sightline_http_frames_rate_limited_total",
		Help: "Frame submissions rejected by the rate limiter",
	})
	m.duplicateFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sightline_http_frames_duplicate_total",
		Help: "Frame submissions rejected as repeated frame ids",
	})
}

func (m *HTTPMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.requestErrors,
		m.rateLimited,
		m.duplicateFrames,
	}
}

// Describe implements prometheus.Collector.
func (m *HTTPMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.getCollectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *HTTPMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.getCollectors() {
		c.Collect(ch)
	}
}

// RecordHTTPRequest records a finished request.
func (m *HTTPMetrics) RecordHTTPRequest(method, path string, statusCode int, duration float64) {
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordHTTPRequestError records a request that ended in an error.
func (m *HTTPMetrics) RecordHTTPRequestError(method, path, errorType string) {
	m.requestErrors.WithLabelValues(method, path, errorType).Inc()
}

func (m *HTTPMetrics) RecordRateLimited() { m.rateLimited.Inc() }

func (m *HTTPMetrics) RecordDuplicateFrame() { m.duplicateFrames.Inc() }
