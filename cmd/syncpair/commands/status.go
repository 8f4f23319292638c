package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"syncpair/internal/domain"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show identity, authorisation and session counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := wire.ClientAuth.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Device:      %s (%s)\n", st.Self.Name, st.Self.ID)
			fmt.Fprintf(out, "Fingerprint: %s\n", st.Fingerprint)
			fmt.Fprintf(out, "Status:      %s\n", st.Self.Status)
			if st.AuthStatus != "" {
				fmt.Fprintf(out, "Auth:        %s\n", st.AuthStatus)
			}
			if st.AuthBy != "" {
				fmt.Fprintf(out, "Authorised by: %s\n", st.AuthBy)
			}
			if st.AuthCode != "" && st.Self.Status == domain.ClientPending {
				fmt.Fprintf(out, "Auth code:   %s\n", st.AuthCode)
			}
			fmt.Fprintf(out, "Sync key:    %t\n", st.HasSyncKey)
			if st.LastPoll != "" {
				fmt.Fprintf(out, "Last poll:   %s\n", st.LastPoll)
			}
			for _, state := range []domain.SessionState{
				domain.StateRequestPending, domain.StateRequestSent,
				domain.StateResponsePending, domain.StateResponseSent,
				domain.StateMessageSent, domain.StateClosed,
			} {
				if n := st.Sessions[state]; n > 0 {
					fmt.Fprintf(out, "  %-16s %d\n", state, n)
				}
			}
			return nil
		},
	}
}
