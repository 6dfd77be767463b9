package errors

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureReporter struct {
	mu       sync.Mutex
	reported []*EnhancedError
}

func (c *captureReporter) ReportError(ee *EnhancedError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reported = append(c.reported, ee)
}

func (c *captureReporter) IsEnabled() bool { return true }

func TestBuild_Defaults(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("test error")).Build()
	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.Component)
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuild_FluentContext(t *testing.T) {
	t.Parallel()

	ee := Newf("speaker %s failed", "http").
		Component("speech").
		Category(CategorySpeech).
		Priority(PriorityHigh).
		Context("utterance_id", "u-1").
		Build()

	assert.Equal(t, "speaker http failed", ee.Error())
	assert.Equal(t, "speech", ee.Component)
	assert.Equal(t, PriorityHigh, ee.Priority)
	assert.Equal(t, map[string]any{"utterance_id": "u-1"}, ee.GetContext())
	assert.True(t, IsCategory(ee, CategorySpeech))
	assert.False(t, IsCategory(ee, CategoryValidation))
}

func TestPriority_InvalidFallsBackToMedium(t *testing.T) {
	t.Parallel()

	ee := NewStd("x")
	built := New(ee).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, built.Priority)
}

func TestIsAndUnwrap(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("sentinel")
	ee := New(fmt.Errorf("wrapped: %w", sentinel)).Category(CategoryState).Build()
	wrapped := fmt.Errorf("outer: %w", ee)

	require.True(t, Is(wrapped, sentinel))
	assert.True(t, Is(wrapped, &EnhancedError{Category: CategoryState}))

	var target *EnhancedError
	require.True(t, As(wrapped, &target))
	assert.Equal(t, CategoryState, target.Category)
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	ee := ValidationError("box out of range")
	assert.True(t, IsCategory(ee, CategoryValidation))
	assert.Equal(t, "box out of range", ee.Error())
}

//nolint:paralleltest // mutates the global telemetry reporter
func TestBuild_ReportsWhenReporterActive(t *testing.T) {
	rep := &captureReporter{}
	SetTelemetryReporter(rep)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	New(NewStd("db down")).Category(CategoryDatabase).Build()

	rep.mu.Lock()
	defer rep.mu.Unlock()
	require.Len(t, rep.reported, 1)
	assert.Equal(t, CategoryDatabase, rep.reported[0].Category)
}

func TestScrubMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		absent  string
		present string
	}{
		{"url query", "POST https://tts.local/speak?token=abc failed", "token=abc", "https://tts.local/speak?[REDACTED]"},
		{"password", "mqtt password=hunter2 rejected", "hunter2", "[REDACTED]"},
		{"hex key", "key 0123456789abcdef0123456789abcdef leaked", "0123456789abcdef", "[REDACTED]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := scrubMessage(tt.in)
			assert.NotContains(t, out, tt.absent)
			assert.Contains(t, out, tt.present)
		})
	}
}

func TestErrorTitle(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("x")).Component("mqtt").Category(CategoryMQTTPublish).Context("operation", "publish_alert").Build()
	assert.Equal(t, "Mqtt Mqtt publish Error Publish Alert", errorTitle(ee))
}
