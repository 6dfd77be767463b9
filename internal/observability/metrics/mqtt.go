package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTT connection events.
const (
	MQTTConnected     = "connected"
	MQTTLost          = "lost"
	MQTTReconnecting  = "reconnecting"
	MQTTClosed        = "closed"
	MQTTConnectFailed = "connect_failed"
)

// MQTTMetrics tracks the broker connection and event publishing.
type MQTTMetrics struct {
	Connected      prometheus.Gauge
	Events         *prometheus.CounterVec // event
	Published      *prometheus.CounterVec // topic
	PublishErrors  prometheus.Counter
	PublishLatency prometheus.Histogram
}

// NewMQTTMetrics creates and registers the broker metrics.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sightline_mqtt_connected",
			Help: "1 while the broker connection is up",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sightline_mqtt_connection_events_total",
			Help: "Broker connection state changes by event",
		}, []string{"event"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sightline_mqtt_published_total",
			Help: "Events published by topic",
		}, []string{"topic"}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sightline_mqtt_publish_errors_total",
			Help: "Publishes that failed or timed out",
		}),
		PublishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sightline_mqtt_publish_latency_seconds",
			Help:    "Time until the broker acknowledged a publish",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}
	for _, c := range []prometheus.Collector{m.Connected, m.Events, m.Published, m.PublishErrors, m.PublishLatency} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
		}
	}
	return m, nil
}

// ConnectionEvent counts event and updates the connected gauge.
func (m *MQTTMetrics) ConnectionEvent(event string) {
	m.Events.WithLabelValues(event).Inc()
	switch event {
	case MQTTConnected:
		m.Connected.Set(1)
	case MQTTLost, MQTTClosed:
		m.Connected.Set(0)
	}
}

// ObservePublish records an acknowledged publish.
func (m *MQTTMetrics) ObservePublish(topic string, latency time.Duration) {
	m.Published.WithLabelValues(topic).Inc()
	m.PublishLatency.Observe(latency.Seconds())
}

func (m *MQTTMetrics) PublishFailed() { m.PublishErrors.Inc() }
