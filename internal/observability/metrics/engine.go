package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics holds the Prometheus collectors fed by the alert engine.
type EngineMetrics struct {
	framesProcessed    prometheus.Counter
	framesSuperseded   prometheus.Counter
	frameDuration      prometheus.Histogram
	frameWait          prometheus.Histogram
	detectionsRejected prometheus.Counter
	belowThreshold     prometheus.Counter
	alertsEnqueued     prometheus.Counter
	alertsSuppressed   *prometheus.CounterVec
	utterancesStarted  prometheus.Counter
	utterancesDone     *prometheus.CounterVec
	watchdogTrips      prometheus.Counter
	queueDepth         prometheus.Gauge
	speaking           prometheus.Gauge
	sinkDrops          prometheus.Counter
	panics             prometheus.Counter
}

// NewEngineMetrics creates the engine collectors and registers them with
// registry.
func NewEngineMetrics(registry *prometheus.Registry) (*EngineMetrics, error) {
	m := &EngineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register engine metrics: %w", err)
	}
	return m, nil
}

func (m *EngineMetrics) initMetrics() {
	m.framesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sightline_frames_processed_total",
		Help: "Detection frames run through selection",
	})
	m.framesSuperseded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sightline_frames_superseded_total",
		Help: "Frames replaced by a newer frame before processing",
	})
	m.frameDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sightline_frame_processing_seconds",
		Help:    "Time spent processing one frame",
		Buckets: frameBuckets,
	})
	m.frameWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sightline_frame_wait_seconds",
		Help:    "Time a frame waited in the mailbox before processing",
		Buckets: frameBuckets,
	})
	m.detectionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sightline_detections_rejected_total",
		Help: "Detections dropped for malformed boxes or confidences",
	})
	m.belowThreshold = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sightline_detections_below_threshold_total",
		Help: "Detections whose score fell below their class threshold",
	})
	m.alertsEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sightline_alerts_enqueued_total",
		Help: "Alerts accepted by the speech queue",
	})
	m.alertsSuppressed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sightline_alerts_suppressed_total",
		Help: "Alerts not enqueued, by reason",
	}, []string{"reason"})
	m.utterancesStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sightline_utterances_started_total",
		Help: "Utterances handed to the speaker",
	})
	m.utterancesDone = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sightline_utterances_completed_total",
		Help: "Utterances finished, by status",
	}, []string{"status"})
	m.watchdogTrips = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sightline_speech_watchdog_trips_total",
		Help: "In-flight utterances cleared because no completion arrived",
	})
	m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sightline_speech_queue_depth",
		Help: "Utterances waiting to be spoken",
	})
	m.speaking = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sightline_speech_speaking",
		Help: "1 while an utterance is in flight",
	})
	m.sinkDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sightline_sink_events_dropped_total",
		Help: "Events dropped because the sink buffer was full",
	})
	m.panics = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sightline_engine_panics_recovered_total",
		Help: "Panics recovered inside the engine loop",
	})
}

func (m *EngineMetrics) FrameProcessed(d time.Duration) {
	m.framesProcessed.Inc()
	m.frameDuration.Observe(d.Seconds())
}

func (m *EngineMetrics) FrameWaited(d time.Duration) {
	if d < 0 {
		d = 0
	}
	m.frameWait.Observe(d.Seconds())
}

func (m *EngineMetrics) FrameSuperseded() { m.framesSuperseded.Inc() }

func (m *EngineMetrics) DetectionsRejected(n int) {
	if n > 0 {
		m.detectionsRejected.Add(float64(n))
	}
}

func (m *EngineMetrics) DetectionsBelowThreshold(n int) {
	if n > 0 {
		m.belowThreshold.Add(float64(n))
	}
}

func (m *EngineMetrics) AlertEnqueued() { m.alertsEnqueued.Inc() }

func (m *EngineMetrics) AlertSuppressed(reason string) {
	m.alertsSuppressed.WithLabelValues(reason).Inc()
}

func (m *EngineMetrics) UtteranceStarted() { m.utterancesStarted.Inc() }

func (m *EngineMetrics) UtteranceCompleted(status string) {
	m.utterancesDone.WithLabelValues(status).Inc()
}

func (m *EngineMetrics) WatchdogTripped() { m.watchdogTrips.Inc() }

func (m *EngineMetrics) QueueDepth(n int) { m.queueDepth.Set(float64(n)) }

func (m *EngineMetrics) Speaking(active bool) {
	if active {
		m.speaking.Set(1)
		return
	}
	m.speaking.Set(0)
}

func (m *EngineMetrics) SinkDropped() { m.sinkDrops.Inc() }

func (m *EngineMetrics) PanicRecovered() { m.panics.Inc() }

func (m *EngineMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.framesProcessed,
		m.framesSuperseded,
		m.frameDuration,
		m.frameWait,
		m.detectionsRejected,
		m.belowThreshold,
		m.alertsEnqueued,
		m.alertsSuppressed,
		m.utterancesStarted,
		m.utterancesDone,
		m.watchdogTrips,
		m.queueDepth,
		m.speaking,
		m.sinkDrops,
		m.panics,
	}
}

// Describe implements prometheus.Collector.
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors() {
		c.Collect(ch)
	}
}
