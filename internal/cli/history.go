package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/handsoff/internal/store"
)

// NewHistoryCmd creates the 'history' command for printing the journal.
func NewHistoryCmd(opts *options) *cobra.Command {
	var limit int
	var jsonOutput bool
	var bursts bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show fired alerts and training bursts",
		Example: `  handsoff history
  handsoff history --bursts
  handsoff history --limit 20 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			journal, err := store.New(cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			defer journal.Close()

			if bursts {
				return printBursts(cmd.OutOrStdout(), journal, limit, jsonOutput)
			}
			return printAlerts(cmd.OutOrStdout(), journal, limit, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	cmd.Flags().BoolVar(&bursts, "bursts", false, "Show training bursts instead of alerts")

	return cmd
}

func printAlerts(w io.Writer, journal *store.Store, limit int, jsonOutput bool) error {
	alerts, err := journal.Alerts().List(limit)
	if err != nil {
		return fmt.Errorf("failed to list alerts: %w", err)
	}
	if jsonOutput {
		return writeJSON(w, alerts)
	}
	if len(alerts) == 0 {
		fmt.Fprintln(w, "No alerts recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tLABEL\tCONFIDENCE\tSESSION")
	for _, a := range alerts {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n", a.CreatedAt.Local().Format(time.DateTime), a.Label, a.Confidence, shortID(a.SessionID))
	}
	return tw.Flush()
}

func printBursts(w io.Writer, journal *store.Store, limit int, jsonOutput bool) error {
	bursts, err := journal.Bursts().List(limit)
	if err != nil {
		return fmt.Errorf("failed to list bursts: %w", err)
	}
	if jsonOutput {
		return writeJSON(w, bursts)
	}
	if len(bursts) == 0 {
		fmt.Fprintln(w, "No training bursts recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tLABEL\tADDED\tERROR")
	for _, b := range bursts {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n", b.StartedAt.Local().Format(time.DateTime), b.Label, b.Completed, b.Requested, b.Error)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
