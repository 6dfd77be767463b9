package mqtt

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tphakala/sightline-go/internal/engine"
	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/logger"
	"github.com/tphakala/sightline-go/internal/observability/metrics"
)

const (
	alertsSuffix  = "/alerts"
	sessionSuffix = "/session"
)

// Publisher is an engine sink that forwards events as JSON.
type Publisher struct {
	client   Client
	topic    string
	recorder metrics.Recorder
	log      logger.Logger
}

// NewPublisher publishes under topic using client. recorder may be nil.
func NewPublisher(client Client, topic string, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	topic = strings.TrimRight(topic, "/")
	if topic == "" {
		topic = DefaultConfig().Topic
	}
	return &Publisher{client: client, topic: topic, recorder: recorder, log: GetLogger()}
}

func (p *Publisher) Name() string { return "mqtt" }

// AlertsTopic is where alert events go.
func (p *Publisher) AlertsTopic() string { return p.topic + alertsSuffix }

// SessionTopic is where session events go.
func (p *Publisher) SessionTopic() string { return p.topic + sessionSuffix }

// Handle implements engine.Sink. Events are dropped while disconnected;
// paho reconnects in the background.
func (p *Publisher) Handle(ctx context.Context, ev engine.Event) error {
	var (
		topic string
		body  any
	)
	switch ev.Type {
	case engine.EventAlertSpoken:
		topic, body = p.AlertsTopic(), alertDTO(ev)
	case engine.EventSessionStarted, engine.EventSessionEnded:
		topic, body = p.SessionTopic(), sessionDTO(ev)
	default:
		return nil
	}

	if !p.client.IsConnected() {
		p.recorder.RecordOperation(metrics.OpMQTTPublish, metrics.StatusDropped)
		p.log.Debug("not connected, event dropped", logger.String("type", string(ev.Type)))
		return nil
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("operation", "marshal").
			Build()
	}

	if err := p.client.Publish(ctx, topic, payload); err != nil {
		p.recorder.RecordOperation(metrics.OpMQTTPublish, metrics.StatusError)
		p.recorder.RecordError(metrics.OpMQTTPublish, string(errors.CategoryMQTTPublish))
		return err
	}
	p.recorder.RecordOperation(metrics.OpMQTTPublish, metrics.StatusSuccess)
	return nil
}
