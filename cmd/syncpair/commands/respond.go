package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"syncpair/internal/domain"
)

func approveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <session> <code>",
		Short: "Approve a request with the code shown on the new device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := wire.ClientAuth.SendClientAuthResponse(cmd.Context(), domain.SessionID(args[0]), true, args[1])
			if err != nil {
				return err
			}
			if status == domain.AuthOkay {
				fmt.Fprintln(cmd.OutOrStdout(), "Device authorised.")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Code did not match; the request was refused.")
			}
			return nil
		},
	}
}

func rejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <session>",
		Short: "Refuse an authorisation request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := wire.ClientAuth.SendClientAuthResponse(cmd.Context(), domain.SessionID(args[0]), false, ""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Request refused.")
			return nil
		},
	}
}
