package transcript

import (
	"context"

	"github.com/tphakala/sightline-go/internal/engine"
)

// Sink appends spoken alerts and session boundaries to a Transcript.
type Sink struct {
	tr *Transcript
}

// NewSink wraps tr as an engine sink.
func NewSink(tr *Transcript) *Sink {
	return &Sink{tr: tr}
}

func (s *Sink) Name() string { return "transcript" }

// Handle implements engine.Sink.
func (s *Sink) Handle(_ context.Context, ev engine.Event) error {
	switch ev.Type {
	case engine.EventAlertSpoken:
		return s.tr.Append(ev.Time, ev.Text)
	case engine.EventSessionStarted:
		return s.tr.Append(ev.Time, "[session started]")
	case engine.EventSessionEnded:
		text := "[session ended]"
		if ev.Reason != "" {
			text = "[session ended: " + ev.Reason + "]"
		}
		return s.tr.Append(ev.Time, text)
	}
	return nil
}
