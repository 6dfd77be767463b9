package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sightline-go/internal/engine"
	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/observability/metrics"
)

type message struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	mu         sync.Mutex
	connected  bool
	publishErr error
	sent       []message
}

func (f *fakeClient) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeClient) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.sent = append(f.sent, message{topic, payload})
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestPublisher_Topics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, topic, alerts string
	}{
		{"plain", "home/cane", "home/cane/alerts"},
		{"trailing slash", "home/cane/", "home/cane/alerts"},
		{"empty uses default", "", "sightline/alerts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewPublisher(&fakeClient{}, tt.topic, nil)
			assert.Equal(t, tt.alerts, p.AlertsTopic())
		})
	}
}

func TestPublisher_PublishesEvents(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{connected: true}
	rec := metrics.NewTestRecorder()
	p := NewPublisher(fc, "sightline", rec)

	require.NoError(t, p.Handle(t.Context(), engine.Event{
		Type: engine.EventSessionStarted, SessionID: "s1", Time: t0, ScanDuration: 30 * time.Second,
	}))
	require.NoError(t, p.Handle(t.Context(), engine.Event{
		Type: engine.EventAlertSpoken, SessionID: "s1", Time: t0.Add(time.Second),
		UtteranceID: "u1", Key: "dog_left_close", Text: "dog to your left, close",
	}))
	require.NoError(t, p.Handle(t.Context(), engine.Event{
		Type: engine.EventSessionEnded, SessionID: "s1", Time: t0.Add(30 * time.Second), Reason: "scan_complete",
	}))

	require.Len(t, fc.sent, 3)
	assert.Equal(t, "sightline/session", fc.sent[0].topic)
	assert.Equal(t, "sightline/alerts", fc.sent[1].topic)

	var started SessionDTO
	require.NoError(t, json.Unmarshal(fc.sent[0].payload, &started))
	assert.Equal(t, "started", started.State)
	assert.InDelta(t, 30, started.ScanDuration, 0)

	var alert AlertDTO
	require.NoError(t, json.Unmarshal(fc.sent[1].payload, &alert))
	assert.Equal(t, AlertDTO{
		SessionID: "s1", UtteranceID: "u1", Key: "dog_left_close",
		Text: "dog to your left, close", SpokenAt: t0.Add(time.Second),
	}, alert)

	var ended SessionDTO
	require.NoError(t, json.Unmarshal(fc.sent[2].payload, &ended))
	assert.Equal(t, "ended", ended.State)
	assert.Equal(t, "scan_complete", ended.Reason)

	assert.Equal(t, 3, rec.GetOperationCount(metrics.OpMQTTPublish, metrics.StatusSuccess))
}

func TestPublisher_DropsWhileDisconnected(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	rec := metrics.NewTestRecorder()
	p := NewPublisher(fc, "sightline", rec)

	require.NoError(t, p.Handle(t.Context(), engine.Event{Type: engine.EventAlertSpoken, Text: "x"}))
	assert.Empty(t, fc.sent)
	assert.Equal(t, 1, rec.GetOperationCount(metrics.OpMQTTPublish, metrics.StatusDropped))
}

func TestPublisher_ReportsPublishErrors(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{connected: true, publishErr: errors.NewStd("broker gone")}
	rec := metrics.NewTestRecorder()
	p := NewPublisher(fc, "sightline", rec)

	require.Error(t, p.Handle(t.Context(), engine.Event{Type: engine.EventAlertSpoken, Text: "x"}))
	assert.Equal(t, 1, rec.GetErrorCount(metrics.OpMQTTPublish, string(errors.CategoryMQTTPublish)))
}

func TestPublisher_IgnoresUnknownEvents(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{connected: true}
	p := NewPublisher(fc, "sightline", nil)
	require.NoError(t, p.Handle(t.Context(), engine.Event{Type: "something_else"}))
	assert.Empty(t, fc.sent)
}
