package mqtt

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/observability/metrics"
)

func newTestMetrics(t *testing.T) *metrics.MQTTMetrics {
	t.Helper()
	m, err := metrics.NewMQTTMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestClient_InvalidBrokerURL(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{Broker: "://nope"}, nil)
	err := c.Connect(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnect))
	assert.False(t, c.IsConnected())
}

func TestClient_ReconnectCooldown(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{Broker: "://nope", ReconnectCooldown: time.Hour}, nil)
	require.Error(t, c.Connect(t.Context()))

	err := c.Connect(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too recent")
}

func TestClient_ConnectionRefused(t *testing.T) {
	t.Parallel()

	m := newTestMetrics(t)
	c := NewClient(Config{
		Broker:         "tcp://127.0.0.1:1",
		ConnectTimeout: 2 * time.Second,
	}, m)
	require.Error(t, c.Connect(t.Context()))
	assert.False(t, c.IsConnected())
	assert.InDelta(t, 1, testutil.ToFloat64(m.Events.WithLabelValues(metrics.MQTTConnectFailed)), 0)
	assert.Zero(t, testutil.ToFloat64(m.Connected))
	c.Disconnect()
}

func TestClient_PublishWhileDisconnected(t *testing.T) {
	t.Parallel()

	c := NewClient(DefaultConfig(), nil)
	err := c.Publish(t.Context(), "sightline/alerts", []byte("{}"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
	c.Disconnect()
}
