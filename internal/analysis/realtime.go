package analysis

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/sightline-go/internal/api"
	"github.com/tphakala/sightline-go/internal/conf"
	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/logger"
	"github.com/tphakala/sightline-go/internal/mqtt"
	"github.com/tphakala/sightline-go/internal/observability"
)

// RealtimeAnalysis runs the pipeline behind the HTTP API until ctx is
// cancelled. The telemetry endpoint and the MQTT connection are started
// when enabled. A failing server stops everything.
func RealtimeAnalysis(ctx context.Context, settings *conf.Settings, opts Options) error {
	p, err := Build(settings, opts)
	if err != nil {
		return err
	}
	defer p.Close()

	return p.Serve(ctx, settings, nil)
}

// Ready receives the started API server. Tests use it to learn the
// listening address.
type Ready func(srv *api.Server)

// Serve runs an already built pipeline. ready, if non-nil, is called once
// the API server is constructed.
func (p *Pipeline) Serve(ctx context.Context, settings *conf.Settings, ready Ready) error {
	log := GetLogger()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.Engine.Run(gctx)
	})

	if settings.API.Enabled {
		serverOpts := []api.ServerOption{
			api.WithMetrics(p.Metrics.HTTP),
			api.WithTranscript(p.Transcript),
		}
		if p.Journal != nil {
			serverOpts = append(serverOpts, api.WithJournal(p.Journal))
		}
		srv, err := api.New(settings.APIConfig(), p.Engine, serverOpts...)
		if err != nil {
			return err
		}
		if ready != nil {
			ready(srv)
		}
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	if settings.Telemetry.Enabled {
		endpoint := observability.NewEndpoint(settings.Telemetry.Listen, p.Metrics)
		g.Go(func() error {
			return endpoint.Run(gctx)
		})
	}

	if p.MQTT != nil {
		g.Go(func() error {
			connectMQTT(gctx, p.MQTT, settings.MQTT.ReconnectCooldown.Std())
			return nil
		})
	}

	log.Info("sightline started",
		logger.Bool("api", settings.API.Enabled),
		logger.Bool("telemetry", settings.Telemetry.Enabled),
		logger.Bool("journal", p.Journal != nil),
		logger.Bool("mqtt", p.MQTT != nil))

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("sightline stopped")
	return nil
}

// connectMQTT retries the initial connection until it succeeds or ctx ends.
// Later drops are handled by the client's auto-reconnect.
func connectMQTT(ctx context.Context, client mqtt.Client, cooldown time.Duration) {
	log := mqtt.GetLogger()
	if cooldown <= 0 {
		cooldown = mqtt.DefaultConfig().ReconnectCooldown
	}
	for {
		err := client.Connect(ctx)
		if err == nil {
			return
		}
		log.Warn("mqtt connection failed, retrying",
			logger.Error(err),
			logger.Duration("retry_in", cooldown))

		timer := time.NewTimer(cooldown)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
