package main

import (
	"fmt"
	"os"

	"github.com/tphakala/sightline-go/cmd"
	"github.com/tphakala/sightline-go/internal/conf"
	"github.com/tphakala/sightline-go/internal/logger"
)

func main() {
	settings := &conf.Settings{}

	rootCmd := cmd.RootCommand(settings)
	err := rootCmd.Execute()
	if central := logger.Global(); central != nil {
		_ = central.Flush()
		_ = central.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
