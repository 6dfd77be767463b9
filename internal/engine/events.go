package engine

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/sightline-go/internal/logger"
)

// EventType names what happened in a session.
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventAlertSpoken    EventType = "alert_spoken"
	EventSessionEnded   EventType = "session_ended"
)

// Event is delivered to sinks after the fact. Sinks never influence the
// engine.
type Event struct {
	Type        EventType `json:"type"`
	SessionID   string    `json:"session_id"`
	Time        time.Time `json:"time"`
	UtteranceID string    `json:"utterance_id,omitempty"`
	Text        string    `json:"text,omitempty"`
	Key         string    `json:"key,omitempty"`
	Reason      string    `json:"reason,omitempty"`

	ScanDuration time.Duration `json:"scan_duration,omitempty"`
}

// Sink consumes engine events, for example a transcript, an MQTT publisher
// or a database journal.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Name() string                               { return "func" }
func (f SinkFunc) Handle(ctx context.Context, ev Event) error { return f(ctx, ev) }

// notifier fans events out to sinks on its own goroutine. The buffer is
// bounded; events that do not fit are dropped and counted.
type notifier struct {
	sinks   []Sink
	events  chan Event
	timeout time.Duration
	metrics Metrics
	log     logger.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newNotifier(sinks []Sink, buffer int, timeout time.Duration, m Metrics, log logger.Logger) *notifier {
	return &notifier{
		sinks:   sinks,
		events:  make(chan Event, buffer),
		timeout: timeout,
		metrics: m,
		log:     log,
		done:    make(chan struct{}),
	}
}

func (n *notifier) emit(ev Event) {
	if len(n.sinks) == 0 {
		return
	}
	select {
	case n.events <- ev:
	default:
		n.metrics.SinkDropped()
		n.log.Warn("event dropped, sink buffer full", logger.String("type", string(ev.Type)))
	}
}

func (n *notifier) run() {
	defer close(n.done)
	for ev := range n.events {
		for _, s := range n.sinks {
			n.deliver(s, ev)
		}
	}
}

func (n *notifier) deliver(s Sink, ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("sink panicked", logger.String("sink", s.Name()), logger.Any("panic", r))
		}
	}()
	if err := s.Handle(ctx, ev); err != nil {
		n.log.Warn("sink failed",
			logger.String("sink", s.Name()),
			logger.String("type", string(ev.Type)),
			logger.Error(err))
	}
}

// close stops accepting events and waits for queued ones to be delivered.
func (n *notifier) close() {
	n.closeOnce.Do(func() { close(n.events) })
	<-n.done
}
