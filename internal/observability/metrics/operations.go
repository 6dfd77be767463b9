package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics is the Prometheus-backed Recorder shared by the journal,
// the MQTT publisher and the HTTP speaker.
type OperationMetrics struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	errors     *prometheus.CounterVec
}

// NewOperationMetrics creates and registers the operation collectors.
func NewOperationMetrics(registry *prometheus.Registry) (*OperationMetrics, error) {
	m := &OperationMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sightline_operations_total",
			Help: "Operations by name and outcome",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sightline_operation_duration_seconds",
			Help:    "Operation latency",
			Buckets: latencyBuckets,
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sightline_operation_errors_total",
			Help: "Operation errors by category",
		}, []string{"operation", "error_type"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register operation metrics: %w", err)
	}
	return m, nil
}

func (m *OperationMetrics) RecordOperation(operation, status string) {
	m.operations.WithLabelValues(operation, status).Inc()
}

func (m *OperationMetrics) RecordDuration(operation string, seconds float64) {
	m.durations.WithLabelValues(operation).Observe(seconds)
}

func (m *OperationMetrics) RecordError(operation, errorType string) {
	m.errors.WithLabelValues(operation, errorType).Inc()
}

// Describe implements prometheus.Collector.
func (m *OperationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operations.Describe(ch)
	m.durations.Describe(ch)
	m.errors.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *OperationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operations.Collect(ch)
	m.durations.Collect(ch)
	m.errors.Collect(ch)
}
