// Package replay implements the replay command.
package replay

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/sightline-go/internal/analysis"
	"github.com/tphakala/sightline-go/internal/conf"
	"github.com/tphakala/sightline-go/internal/errors"
)

// Command creates the replay command. It feeds recorded frames from a JSONL
// file, or stdin when the path is "-", through the engine and prints the
// resulting transcript.
func Command(settings *conf.Settings) *cobra.Command {
	var opts analysis.ReplayOptions
	var quiet bool

	cmd := &cobra.Command{
		Use:   "replay [frames.jsonl]",
		Short: "Replay recorded detection frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeFn, err := open(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			// the API is never served during a replay
			local := *settings
			local.API.Enabled = false

			out := cmd.OutOrStdout()
			speakOut := out
			if quiet {
				speakOut = io.Discard
			}
			res, err := analysis.Replay(cmd.Context(), &local, in, opts, analysis.Options{Output: speakOut})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(out, "\nframes: %d, rejected detections: %d, alerts: %d\n",
				res.Frames, res.Rejected, len(res.Announced))
			for _, line := range res.Transcript {
				_, _ = fmt.Fprintf(out, "%s  %s\n", line.Time.Format("15:04:05.000"), line.Text)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&opts.FPS, "fps", analysis.DefaultReplayFPS, "Frames fed per second")
	cmd.Flags().DurationVar(&opts.Drain, "drain", analysis.DefaultReplayDrain, "Maximum wait for queued speech after the last frame")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not echo spoken alerts")
	return cmd
}

func open(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.New(err).
			Component("replay").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return f, func() { _ = f.Close() }, nil
}
