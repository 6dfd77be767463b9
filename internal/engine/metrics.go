package engine

import "time"

// Metrics receives engine counters. The Prometheus implementation lives in
// observability/metrics.
type Metrics interface {
	FrameProcessed(d time.Duration)
	// FrameWaited reports how long a frame sat in the mailbox before
	// processing started.
	FrameWaited(d time.Duration)
	FrameSuperseded()
	DetectionsRejected(n int)
	DetectionsBelowThreshold(n int)
	AlertEnqueued()
	AlertSuppressed(reason string)
	UtteranceStarted()
	UtteranceCompleted(status string)
	WatchdogTripped()
	QueueDepth(n int)
	Speaking(active bool)
	SinkDropped()
	PanicRecovered()
}

type noopMetrics struct{}

func (noopMetrics) FrameProcessed(time.Duration) {}
func (noopMetrics) FrameWaited(time.Duration)    {}
func (noopMetrics) FrameSuperseded()             {}
func (noopMetrics) DetectionsRejected(int)       {}
func (noopMetrics) DetectionsBelowThreshold(int) {}
func (noopMetrics) AlertEnqueued()               {}
func (noopMetrics) AlertSuppressed(string)       {}
func (noopMetrics) UtteranceStarted()            {}
func (noopMetrics) UtteranceCompleted(string)    {}
func (noopMetrics) WatchdogTripped()             {}
func (noopMetrics) QueueDepth(int)               {}
func (noopMetrics) Speaking(bool)                {}
func (noopMetrics) SinkDropped()                 {}
func (noopMetrics) PanicRecovered()              {}
