package datastore

import "time"

// Session is one scan session as journaled.
type Session struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	StartedAt      time.Time  `gorm:"index;not null" json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	EndReason      string     `gorm:"size:32" json:"end_reason,omitempty"`
	ScanDurationMs int64      `json:"scan_duration_ms,omitempty"`
	Alerts         []Alert    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Alert is one spoken alert.
type Alert struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SessionID   string    `gorm:"index;size:36;not null" json:"session_id"`
	UtteranceID string    `gorm:"uniqueIndex;size:36" json:"utterance_id"`
	Key         string    `gorm:"index;size:100" json:"key"`
	Text        string    `gorm:"size:255" json:"text"`
	SpokenAt    time.Time `gorm:"index;not null" json:"spoken_at"`
}
