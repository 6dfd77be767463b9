package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sightline-go/internal/logger"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), "line: %s", line)
		out = append(out, rec)
	}
	return out
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		level logger.LogLevel
		want  []string
	}{
		{"debug shows everything", logger.LogLevelDebug, []string{"debug", "info", "warn", "error"}},
		{"info hides debug", logger.LogLevelInfo, []string{"info", "warn", "error"}},
		{"error only", logger.LogLevelError, []string{"error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			buf := &bytes.Buffer{}
			log := logger.NewSlogLogger(buf, tt.level, time.UTC)

			log.Trace("trace")
			log.Debug("debug")
			log.Info("info")
			log.Warn("warn")
			log.Error("error")

			var got []string
			for _, rec := range decodeLines(t, buf) {
				got = append(got, rec["msg"].(string))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlogLogger_FieldsAndModules(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	root := logger.NewSlogLogger(buf, logger.LogLevelDebug, time.UTC)
	speechLog := root.Module("engine").Module("speech").With(logger.String("session_id", "s-1"))

	speechLog.Info("utterance started",
		logger.String("text", "chair ahead"),
		logger.Int("pending", 2),
		logger.Float32("priority", 4.12345),
		logger.Bool("forced", false),
		logger.Duration("gap", 1500*time.Millisecond),
		logger.Error(errors.New("boom")))

	recs := decodeLines(t, buf)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "engine.speech", rec["module"])
	assert.Equal(t, "s-1", rec["session_id"])
	assert.Equal(t, "chair ahead", rec["text"])
	assert.InDelta(t, 2, rec["pending"], 0)
	assert.InDelta(t, 4.123, rec["priority"], 0.0001)
	assert.Equal(t, false, rec["forced"])
	assert.Equal(t, "1.5s", rec["gap"])
	assert.Equal(t, "boom", rec["error"])
}

func TestSlogLogger_WithDoesNotLeakIntoParent(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	parent := logger.NewSlogLogger(buf, logger.LogLevelInfo, nil)
	_ = parent.With(logger.String("child", "yes"))
	parent.Info("parent")

	recs := decodeLines(t, buf)
	require.Len(t, recs, 1)
	assert.NotContains(t, recs[0], "child")
}

func TestSlogLogger_WithContextTraceID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelInfo, time.UTC)
	ctx := logger.WithTraceID(context.Background(), "abc-123")

	log.WithContext(ctx).Info("frame ingested")
	log.WithContext(context.Background()).Info("no trace")

	recs := decodeLines(t, buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "abc-123", recs[0]["trace_id"])
	assert.NotContains(t, recs[1], "trace_id")
}

func TestCentralLogger_FileOutputAndModuleLevels(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "sightline.log")
	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "info",
		Timezone:     "UTC",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"speech": "debug"},
	})
	require.NoError(t, err)

	cl.Module("engine").Debug("hidden by module level")
	cl.Module("speech").Debug("visible")
	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	recs := decodeLines(t, bytes.NewBuffer(data))
	require.Len(t, recs, 1)
	assert.Equal(t, "visible", recs[0]["msg"])
	assert.Equal(t, "speech", recs[0]["module"])
}

func TestCentralLogger_RejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := logger.NewCentralLogger(nil)
	require.Error(t, err)

	_, err = logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Not/AZone"})
	require.Error(t, err)
}

func TestGlobal_FallbackIsUsable(t *testing.T) {
	t.Parallel()

	log := logger.Global().Module("test")
	require.NotNil(t, log)
	assert.NotPanics(t, func() { log.Debug("quiet") })
}
