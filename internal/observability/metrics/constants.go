// Package metrics provides Prometheus collectors for sightline components.
package metrics

import "time"

// Operation names passed to Recorder.
const (
	OpFrame         = "frame"
	OpAlert         = "alert"
	OpUtterance     = "utterance"
	OpSessionBegin  = "session_begin"
	OpSessionEnd    = "session_end"
	OpJournalWrite  = "journal_write"
	OpJournalQuery  = "journal_query"
	OpMQTTPublish   = "mqtt_publish"
	OpSinkDelivery  = "sink_delivery"
	OpSpeechRequest = "speech_request"
)

// Status label values.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusTimeout  = "timeout"
	StatusDropped  = "dropped"
	StatusFailed   = "failed"
	StatusWatchdog = "watchdog"
)

// Suppression reasons reported by the engine.
const (
	ReasonDebounced      = "debounced"
	ReasonPending        = "pending"
	ReasonInFlight       = "in_flight"
	ReasonRecentlySpoken = "recently_spoken"
	ReasonEmpty          = "empty"
)

// ShutdownTimeout bounds the telemetry listener shutdown.
const ShutdownTimeout = 5 * time.Second

var (
	frameBuckets   = []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1}
	latencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)
