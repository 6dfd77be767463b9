package mqtt

import (
	"time"

	"github.com/tphakala/sightline-go/internal/engine"
)

// AlertDTO is published to <topic>/alerts for every spoken alert.
//
// Field names are part of the MQTT contract.
type AlertDTO struct {
	SessionID   string    `json:"sessionId"`
	UtteranceID string    `json:"utteranceId"`
	Key         string    `json:"key,omitempty"`
	Text        string    `json:"text"`
	SpokenAt    time.Time `json:"spokenAt"`
}

// SessionDTO is published to <topic>/session on session start and end.
type SessionDTO struct {
	SessionID    string    `json:"sessionId"`
	State        string    `json:"state"` // "started" or "ended"
	Time         time.Time `json:"time"`
	Reason       string    `json:"reason,omitempty"`
	ScanDuration float64   `json:"scanDurationSeconds,omitempty"`
}

func alertDTO(ev engine.Event) AlertDTO {
	return AlertDTO{
		SessionID:   ev.SessionID,
		UtteranceID: ev.UtteranceID,
		Key:         ev.Key,
		Text:        ev.Text,
		SpokenAt:    ev.Time.UTC(),
	}
}

func sessionDTO(ev engine.Event) SessionDTO {
	dto := SessionDTO{SessionID: ev.SessionID, Time: ev.Time.UTC(), Reason: ev.Reason}
	if ev.Type == engine.EventSessionStarted {
		dto.State = "started"
		dto.ScanDuration = ev.ScanDuration.Seconds()
	} else {
		dto.State = "ended"
	}
	return dto
}
