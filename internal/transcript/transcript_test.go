package transcript

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sightline-go/internal/engine"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestTranscript_AppendAndLines(t *testing.T) {
	t.Parallel()

	tr := New(0)
	require.NoError(t, tr.Append(t0, "car to your right, close"))
	require.NoError(t, tr.Append(t0.Add(time.Second), "  chair on the floor\nahead "))

	lines := tr.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, Line{Time: t0, Text: "car to your right, close"}, lines[0])
	assert.Equal(t, "chair on the floor ahead", lines[1].Text, "whitespace collapsed")
	assert.Equal(t, 2, tr.Len())

	// reading is not destructive
	assert.Equal(t, tr.Lines(), lines)
}

func TestTranscript_EvictsWholeLines(t *testing.T) {
	t.Parallel()

	// each record is a 20-30 byte timestamp plus tab, text and newline
	tr := New(120)
	for i := range 10 {
		require.NoError(t, tr.Append(t0.Add(time.Duration(i)*time.Second), fmt.Sprintf("alert %d", i)))
	}

	texts := tr.Texts()
	require.NotEmpty(t, texts)
	assert.Less(t, len(texts), 10)
	assert.Equal(t, "alert 9", texts[len(texts)-1])
	for i, text := range texts {
		assert.True(t, strings.HasPrefix(text, "alert "), "line %d intact: %q", i, text)
	}
	assert.Equal(t, 10-len(texts), tr.Evicted())
}

func TestTranscript_OversizedLineIsTruncated(t *testing.T) {
	t.Parallel()

	tr := New(64)
	require.NoError(t, tr.Append(t0, "first"))
	require.NoError(t, tr.Append(t0, strings.Repeat("x", 200)))

	assert.Equal(t, 1, tr.Len())
}

func TestTranscript_Reset(t *testing.T) {
	t.Parallel()

	tr := New(0)
	require.NoError(t, tr.Append(t0, "a"))
	tr.Reset()
	assert.Zero(t, tr.Len())
	assert.Empty(t, tr.Lines())
}

func TestSink(t *testing.T) {
	t.Parallel()

	tr := New(0)
	s := NewSink(tr)
	assert.Equal(t, "transcript", s.Name())

	events := []engine.Event{
		{Type: engine.EventSessionStarted, Time: t0},
		{Type: engine.EventAlertSpoken, Time: t0.Add(time.Second), Text: "dog to your left, close"},
		{Type: engine.EventSessionEnded, Time: t0.Add(2 * time.Second), Reason: "stopped"},
	}
	for _, ev := range events {
		require.NoError(t, s.Handle(t.Context(), ev))
	}

	assert.Equal(t, []string{
		"[session started]",
		"dog to your left, close",
		"[session ended: stopped]",
	}, tr.Texts())
}
