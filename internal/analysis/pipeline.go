// Package analysis assembles the alert pipeline from settings and runs it,
// either live behind the HTTP API or as a replay of recorded frames.
package analysis

import (
	"io"
	"os"

	"github.com/tphakala/sightline-go/internal/conf"
	"github.com/tphakala/sightline-go/internal/datastore"
	"github.com/tphakala/sightline-go/internal/engine"
	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/httpclient"
	"github.com/tphakala/sightline-go/internal/logger"
	"github.com/tphakala/sightline-go/internal/mqtt"
	"github.com/tphakala/sightline-go/internal/observability"
	"github.com/tphakala/sightline-go/internal/speech"
	"github.com/tphakala/sightline-go/internal/timeutil"
	"github.com/tphakala/sightline-go/internal/transcript"
)

// GetLogger returns the analysis module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("analysis")
}

// Options override parts of the pipeline normally derived from settings.
type Options struct {
	// Speaker replaces the configured speaker.
	Speaker speech.Speaker
	// Output receives console speaker output. Defaults to stdout.
	Output io.Writer
	Clock  timeutil.Clock
	// MQTTClient replaces the paho client built from settings.
	MQTTClient mqtt.Client
}

// Pipeline is an engine with its sinks and supporting services.
type Pipeline struct {
	Engine     *engine.Engine
	Transcript *transcript.Transcript
	Metrics    *observability.Metrics
	Journal    datastore.Interface // nil unless enabled
	MQTT       mqtt.Client         // nil unless enabled

	speaker    speech.Speaker
	httpClient *httpclient.Client
}

// Build wires a pipeline from settings. The engine is not started.
func Build(settings *conf.Settings, opts Options) (*Pipeline, error) {
	log := GetLogger()

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	selector, err := settings.Detection.Selector()
	if err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Context("operation", "build-selector").
			Build()
	}

	p := &Pipeline{
		Metrics:    m,
		Transcript: transcript.New(settings.Transcript.Capacity),
	}
	sinks := []engine.Sink{transcript.NewSink(p.Transcript)}

	if settings.Journal.Enabled {
		store, err := datastore.New(settings.JournalConfig(), m.Operations)
		if err != nil {
			return nil, err
		}
		if err := store.Open(); err != nil {
			return nil, err
		}
		p.Journal = store
		sinks = append(sinks, datastore.NewSink(store))
		log.Info("alert journal enabled", logger.String("type", settings.Journal.Type))
	}

	if settings.MQTT.Enabled {
		client := opts.MQTTClient
		if client == nil {
			client = mqtt.NewClient(settings.MQTTConfig(), m.MQTT)
		}
		p.MQTT = client
		sinks = append(sinks, mqtt.NewPublisher(client, settings.MQTT.Topic, m.Operations))
		log.Info("mqtt publisher enabled",
			logger.String("broker", settings.MQTT.Broker),
			logger.String("topic", settings.MQTT.Topic))
	}

	speaker := opts.Speaker
	if speaker == nil {
		speaker = p.newSpeaker(settings, opts)
	}
	p.speaker = speaker

	engineOpts := []engine.Option{
		engine.WithMetrics(m.Engine),
		engine.WithSinks(sinks...),
	}
	if opts.Clock != nil {
		engineOpts = append(engineOpts, engine.WithClock(opts.Clock))
	}

	eng, err := engine.New(settings.EngineConfig(), selector, speaker, engineOpts...)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Engine = eng
	return p, nil
}

func (p *Pipeline) newSpeaker(settings *conf.Settings, opts Options) speech.Speaker {
	if settings.Speech.Speaker == conf.SpeakerHTTP {
		p.httpClient = httpclient.New(&httpclient.Config{DefaultTimeout: settings.Speech.HTTP.Timeout.Std()})
		return speech.NewHTTPSpeaker(p.httpClient, settings.Speech.HTTP.Endpoint, settings.Speech.HTTP.Timeout.Std())
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return speech.NewConsoleSpeaker(out, opts.Clock, settings.Speech.ConsoleOptions())
}

// Close releases the journal, the MQTT connection and HTTP resources.
func (p *Pipeline) Close() {
	if p.MQTT != nil {
		p.MQTT.Disconnect()
	}
	if p.Journal != nil {
		if err := p.Journal.Close(); err != nil {
			GetLogger().Warn("closing journal failed", logger.Error(err))
		}
	}
	if c, ok := p.speaker.(interface{ Close() }); ok {
		c.Close()
	}
	if p.httpClient != nil {
		p.httpClient.Close()
	}
}
