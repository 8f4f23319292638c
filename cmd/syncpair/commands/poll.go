package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func pollCmd() *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Sync peers and process incoming messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			for {
				res, err := wire.ClientAuth.Poll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Peers: %d, messages handled: %d\n", res.Peers, res.Handled)
				if every <= 0 {
					return nil
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(every):
				}
			}
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "keep polling at this interval until interrupted")
	return cmd
}
