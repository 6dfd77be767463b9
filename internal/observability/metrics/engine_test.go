package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineMetrics_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewEngineMetrics(reg)
	require.NoError(t, err)

	m.FrameProcessed(2 * time.Millisecond)
	m.FrameProcessed(3 * time.Millisecond)
	m.FrameSuperseded()
	m.DetectionsRejected(2)
	m.DetectionsRejected(0)
	m.DetectionsBelowThreshold(5)
	m.AlertEnqueued()
	m.AlertSuppressed(ReasonDebounced)
	m.AlertSuppressed(ReasonDebounced)
	m.AlertSuppressed(ReasonRecentlySpoken)
	m.UtteranceCompleted(StatusSuccess)
	m.UtteranceCompleted(StatusWatchdog)
	m.WatchdogTripped()
	m.QueueDepth(2)
	m.Speaking(true)

	assert.InDelta(t, 2, testutil.ToFloat64(m.framesProcessed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.framesSuperseded), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.detectionsRejected), 0)
	assert.InDelta(t, 5, testutil.ToFloat64(m.belowThreshold), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.alertsSuppressed.WithLabelValues(ReasonDebounced)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.alertsSuppressed.WithLabelValues(ReasonRecentlySpoken)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.utterancesDone.WithLabelValues(StatusWatchdog)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.queueDepth), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.speaking), 0)

	m.Speaking(false)
	assert.Zero(t, testutil.ToFloat64(m.speaking))
}

func TestEngineMetrics_Exposition(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewEngineMetrics(reg)
	require.NoError(t, err)
	m.AlertEnqueued()
	m.SinkDropped()

	expected := `
# HELP sightline_alerts_enqueued_total Alerts accepted by the speech queue
# TYPE sightline_alerts_enqueued_total counter
sightline_alerts_enqueued_total 1
# HELP sightline_sink_events_dropped_total Events dropped because the sink buffer was full
# TYPE sightline_sink_events_dropped_total counter
sightline_sink_events_dropped_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"sightline_alerts_enqueued_total", "sightline_sink_events_dropped_total"))
}

func TestEngineMetrics_FrameWait(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewEngineMetrics(reg)
	require.NoError(t, err)
	m.FrameWaited(20 * time.Millisecond)
	m.FrameWaited(-time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.frameWait))
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "sightline_frame_wait_seconds" {
			continue
		}
		h := mf.GetMetric()[0].GetHistogram()
		assert.Equal(t, uint64(2), h.GetSampleCount())
		assert.InDelta(t, 0.02, h.GetSampleSum(), 1e-9, "negative waits count as zero")
		return
	}
	t.Fatal("sightline_frame_wait_seconds not gathered")
}

func TestEngineMetrics_DoubleRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewEngineMetrics(reg)
	require.NoError(t, err)
	_, err = NewEngineMetrics(reg)
	require.Error(t, err)
}

func TestOperationMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewOperationMetrics(reg)
	require.NoError(t, err)

	var r Recorder = m
	r.RecordOperation(OpJournalWrite, StatusSuccess)
	r.RecordOperation(OpJournalWrite, StatusSuccess)
	r.RecordError(OpMQTTPublish, "timeout")
	r.RecordDuration(OpJournalWrite, 0.01)

	assert.InDelta(t, 2, testutil.ToFloat64(m.operations.WithLabelValues(OpJournalWrite, StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.errors.WithLabelValues(OpMQTTPublish, "timeout")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.durations))
}

func TestMQTTMetrics_ConnectionEvents(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewMQTTMetrics(reg)
	require.NoError(t, err)

	m.ConnectionEvent(MQTTConnected)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Connected), 0)

	m.ConnectionEvent(MQTTReconnecting)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Connected), 0, "reconnecting leaves the gauge alone")

	m.ConnectionEvent(MQTTLost)
	assert.Zero(t, testutil.ToFloat64(m.Connected))
	assert.InDelta(t, 1, testutil.ToFloat64(m.Events.WithLabelValues(MQTTLost)), 0)

	m.ObservePublish("sightline/alerts", 5*time.Millisecond)
	m.ObservePublish("sightline/alerts", 2*time.Millisecond)
	m.PublishFailed()
	assert.InDelta(t, 2, testutil.ToFloat64(m.Published.WithLabelValues("sightline/alerts")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PublishErrors), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.PublishLatency))
}

func TestHTTPMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	m.RecordHTTPRequest("POST", "/api/v1/frames", 200, 0.002)
	m.RecordHTTPRequest("POST", "/api/v1/frames", 429, 0.001)
	m.RecordRateLimited()
	m.RecordDuplicateFrame()

	assert.InDelta(t, 1, testutil.ToFloat64(m.requestsTotal.WithLabelValues("POST", "/api/v1/frames", "429")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.rateLimited), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.duplicateFrames), 0)
}
