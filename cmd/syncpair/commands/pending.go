package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List authorisation requests awaiting a decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := wire.ClientAuth.PendingRequests(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(reqs) == 0 {
				fmt.Fprintln(out, "No pending requests.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION\tDEVICE\tFINGERPRINT\tRECEIVED")
			for _, r := range reqs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.SessionID, r.Name, r.Fingerprint, r.Received.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}
