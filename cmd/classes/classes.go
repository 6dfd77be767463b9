// Package classes implements the classes command.
package classes

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/sightline-go/internal/conf"
)

// Command creates a command printing the effective class table.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "Print the effective obstacle class table",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := settings.Detection.ClassTable()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "LABEL\tAREA THRESHOLD\tRELEVANCE\tCOMPACT GROUND")
			for _, p := range table.Profiles() {
				_, _ = fmt.Fprintf(w, "%s\t%.3f\t%.2f\t%t\n", p.Label, p.AreaThreshold, p.Relevance, p.CompactGround)
			}
			return w.Flush()
		},
	}
}
