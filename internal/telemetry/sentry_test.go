package telemetry

import (
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sightline-go/internal/conf"
	"github.com/tphakala/sightline-go/internal/errors"
)

// The Sentry hub and the error reporter are process globals, so these
// tests do not run in parallel.

func enabledSettings() conf.SentrySettings {
	return conf.SentrySettings{
		Enabled:     true,
		DSN:         "https://public@sentry.example.com/1",
		Environment: "test",
		SampleRate:  1.0,
	}
}

func TestInitSentry_DisabledIsNoop(t *testing.T) {
	errors.SetTelemetryReporter(nil)

	require.NoError(t, InitSentry(conf.SentrySettings{}, "dev"))
	assert.Nil(t, errors.GetTelemetryReporter())
	assert.True(t, Flush(time.Second))
}

func TestInitSentry_ReportsEnhancedErrors(t *testing.T) {
	transport := &mockTransport{}
	require.NoError(t, InitSentry(enabledSettings(), "1.2.3", WithTransport(transport)))
	t.Cleanup(func() { Flush(time.Second) })

	reporter := errors.GetTelemetryReporter()
	require.NotNil(t, reporter)
	assert.True(t, reporter.IsEnabled())

	_ = errors.Newf("tts daemon unreachable at http://tts.local/speak?token=abc").
		Component("speech").
		Category(errors.CategoryNetwork).
		Build()

	events := transport.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "speech", ev.Tags["component"])
	assert.Equal(t, "network", ev.Tags["category"])
	assert.Equal(t, "sightline@1.2.3", ev.Release)
	assert.NotContains(t, ev.Message, "token=abc")
	assert.Empty(t, ev.ServerName)
}

func TestInitSentry_DropsRoutineCategories(t *testing.T) {
	transport := &mockTransport{}
	require.NoError(t, InitSentry(enabledSettings(), "dev", WithTransport(transport)))
	t.Cleanup(func() { Flush(time.Second) })

	_ = errors.Newf("bad box").Category(errors.CategoryValidation).Build()
	_ = errors.Newf("duplicate frame").Category(errors.CategoryConflict).Build()

	assert.Empty(t, transport.Events())
}

func TestFlush_UninstallsReporter(t *testing.T) {
	require.NoError(t, InitSentry(enabledSettings(), "dev", WithTransport(&mockTransport{})))
	require.NotNil(t, errors.GetTelemetryReporter())

	assert.True(t, Flush(time.Second))
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestApplyPrivacyFilters(t *testing.T) {
	ev := &sentry.Event{
		ServerName: "kitchen-pi",
		User:       sentry.User{ID: "42", IPAddress: "10.0.0.2"},
		Contexts:   map[string]sentry.Context{"device": {}, "os": {}, "platform": {}},
		Tags:       map[string]string{"hostname": "kitchen-pi", "component": "api"},
	}

	out := applyPrivacyFilters(ev)
	assert.Empty(t, out.ServerName)
	assert.True(t, out.User.IsEmpty())
	assert.NotContains(t, out.Contexts, "device")
	assert.Contains(t, out.Contexts, "platform")
	assert.Equal(t, map[string]string{"component": "api"}, out.Tags)
}
