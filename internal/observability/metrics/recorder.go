package metrics

// Recorder defines a minimal interface for recording metrics so components
// can depend on an abstraction rather than a concrete collector.
type Recorder interface {
	// RecordOperation records an operation with its outcome, e.g.
	// ("journal_write", "success").
	RecordOperation(operation, status string)

	// RecordDuration records how long an operation took, in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its category.
	RecordError(operation, errorType string)
}

// NoopRecorder discards everything. It is what components use when no
// registry is configured.
type NoopRecorder struct{}

func (NoopRecorder) RecordOperation(string, string) {}
func (NoopRecorder) RecordDuration(string, float64) {}
func (NoopRecorder) RecordError(string, string)     {}
