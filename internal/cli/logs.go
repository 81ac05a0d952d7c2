package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newLogsCommand(a *app) *cobra.Command {
	var (
		from, to string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recognition events in a time range (default: last 24 hours)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			end := time.Now()
			if to != "" {
				t, err := parseBound(to, true)
				if err != nil {
					return err
				}
				end = t
			}
			start := end.Add(-24 * time.Hour)
			if from != "" {
				t, err := parseBound(from, false)
				if err != nil {
					return err
				}
				start = t
			}
			if start.After(end) {
				return fmt.Errorf("--from %s is after --to %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
			}

			st, err := openStorage(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			logs, err := st.logs.GetLogs(cmd.Context(), start, end)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, logs)
			}
			if len(logs) == 0 {
				fmt.Fprintln(out, "No recognition events in range.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TIME\tNAME\tCONFIDENCE\tIDENTITY")
			for _, ev := range logs {
				fmt.Fprintf(w, "%s\t%s\t%.3f\t%s\n",
					ev.Timestamp.Local().Format("2006-01-02 15:04:05"), ev.DisplayName, ev.ConfidenceScore, ev.IdentityID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Range start (RFC3339 or YYYY-MM-DD[ HH:MM[:SS]])")
	cmd.Flags().StringVar(&to, "to", "", "Range end, inclusive (default: now)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
