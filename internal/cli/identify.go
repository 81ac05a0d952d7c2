package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/service"
)

func newIdentifyCommand(a *app) *cobra.Command {
	var (
		nearest int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "identify <image>",
		Short: "Match the faces of a still image and show the nearest identities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := imaging.Load(args[0])
			if err != nil {
				return err
			}

			svc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			results, err := svc.identities.Identify(cmd.Context(), img, nearest)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			printIdentifications(cmd.OutOrStdout(), results, a.cfg.MatchTolerance)
			return nil
		},
	}

	cmd.Flags().IntVar(&nearest, "nearest", 3, "Nearest identities to list per face (0 to skip)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printIdentifications(out io.Writer, results []service.Identification, tolerance float64) {
	if len(results) == 0 {
		fmt.Fprintln(out, "No faces found.")
		return
	}

	for i, r := range results {
		reg := r.Match.Region
		fmt.Fprintf(out, "face %d at (%d,%d)-(%d,%d): ", i+1, reg.Left, reg.Top, reg.Right, reg.Bottom)
		if r.Match.Matched() {
			fmt.Fprintf(out, "%s confidence=%.3f distance=%.3f\n", r.Match.DisplayName, r.Match.Confidence, r.Match.Distance)
		} else {
			fmt.Fprintln(out, "unknown")
		}

		for _, n := range r.Nearest {
			mark := " "
			if n.Distance <= tolerance {
				mark = "*"
			}
			fmt.Fprintf(out, "  %s %-24s distance=%.3f\n", mark, n.DisplayName, n.Distance)
		}
	}
}
