// Package cmd wires the sightline command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/sightline-go/cmd/classes"
	"github.com/tphakala/sightline-go/cmd/config"
	"github.com/tphakala/sightline-go/cmd/replay"
	"github.com/tphakala/sightline-go/cmd/serve"
	"github.com/tphakala/sightline-go/cmd/version"
	"github.com/tphakala/sightline-go/internal/conf"
	"github.com/tphakala/sightline-go/internal/logger"
)

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "sightline",
		Short:         "Spoken obstacle alerts from object detections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	versionCmd := version.Command()
	rootCmd.AddCommand(
		serve.Command(settings),
		replay.Command(settings),
		classes.Command(settings),
		config.Command(settings),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version needs no configuration
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(configFile, settings)
	}

	return rootCmd
}

// initialize loads the configuration and installs the global logger.
func initialize(configFile string, settings *conf.Settings) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}

	loaded, err := conf.Load()
	if err != nil {
		return err
	}
	*settings = *loaded

	central, err := logger.NewCentralLogger(settings.LoggingConfig())
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	logger.SetGlobal(central)
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to the configuration file")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("log-level", "", "Default log level (trace, debug, info, warn, error)")

	if err := viper.BindPFlag("debug", flags.Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	for _, key := range []string{"logging.default_level", "logging.console.level"} {
		if err := viper.BindPFlag(key, flags.Lookup("log-level")); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}
	return nil
}
