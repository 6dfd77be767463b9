// Package serve implements the serve command.
package serve

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/sightline-go/internal/analysis"
	"github.com/tphakala/sightline-go/internal/buildinfo"
	"github.com/tphakala/sightline-go/internal/conf"
	"github.com/tphakala/sightline-go/internal/logger"
	"github.com/tphakala/sightline-go/internal/telemetry"
)

// Command creates the serve command, which runs the alert engine behind
// the HTTP API until interrupted.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the alert engine and HTTP API",
		Long:  "Accept detection frames over HTTP and speak obstacle alerts until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := telemetry.InitSentry(settings.Telemetry.Sentry, buildinfo.Current().GetVersion()); err != nil {
				telemetry.GetLogger().Warn("sentry initialization failed", logger.Error(err))
			}
			defer telemetry.Flush(telemetry.FlushTimeout)

			return analysis.RealtimeAnalysis(ctx, settings, analysis.Options{Output: cmd.OutOrStdout()})
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("host", "", "API listen host")
	flags.String("port", "", "API listen port")
	flags.String("speaker", "", "Speaker backend (console, http)")
	flags.Bool("telemetry", false, "Enable the Prometheus telemetry endpoint")
	flags.String("listen", "", "Listen address of the telemetry endpoint")

	bindings := map[string]string{
		"host":      "api.host",
		"port":      "api.port",
		"speaker":   "speech.speaker",
		"telemetry": "telemetry.enabled",
		"listen":    "telemetry.listen",
	}
	for flag, key := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}
