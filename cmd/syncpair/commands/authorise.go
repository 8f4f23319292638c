package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func authoriseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorise",
		Short: "Ask authorised devices to authorise this one",
		Long: "Sends an authorisation request to every authorised device and prints\n" +
			"the code to enter on one of them. Run poll afterwards to receive the answer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			password := flagOrEnv(cmd, "password")
			if password == "" {
				return fmt.Errorf("account password required (--password)")
			}
			res, err := wire.ClientAuth.AuthoriseClient(cmd.Context(), password)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.AlreadyAuthorised {
				fmt.Fprintln(out, "This device is already authorised.")
				return nil
			}
			fmt.Fprintf(out, "Request sent to %d device(s).\n", res.Sent)
			fmt.Fprintf(out, "Enter this code on an authorised device: %s\n", res.AuthCode)
			return nil
		},
	}
	cmd.Flags().String("password", "", "account password")
	return cmd
}
