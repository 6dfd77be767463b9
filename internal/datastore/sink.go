package datastore

import (
	"context"

	"github.com/tphakala/sightline-go/internal/engine"
)

// Sink journals engine events.
type Sink struct {
	store Interface
}

// NewSink wraps store as an engine sink.
func NewSink(store Interface) *Sink {
	return &Sink{store: store}
}

func (s *Sink) Name() string { return "journal" }

// Handle implements engine.Sink.
func (s *Sink) Handle(_ context.Context, ev engine.Event) error {
	switch ev.Type {
	case engine.EventSessionStarted:
		return s.store.SaveSession(&Session{
			ID:             ev.SessionID,
			StartedAt:      ev.Time.UTC(),
			ScanDurationMs: ev.ScanDuration.Milliseconds(),
		})
	case engine.EventAlertSpoken:
		return s.store.SaveAlert(&Alert{
			SessionID:   ev.SessionID,
			UtteranceID: ev.UtteranceID,
			Key:         ev.Key,
			Text:        ev.Text,
			SpokenAt:    ev.Time.UTC(),
		})
	case engine.EventSessionEnded:
		return s.store.EndSession(ev.SessionID, ev.Time.UTC(), ev.Reason)
	}
	return nil
}
