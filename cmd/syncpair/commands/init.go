package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"syncpair/internal/services/clientauth"
)

func initCmd() *cobra.Command {
	var (
		name       string
		authorised bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the local device identity and publish it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("device name required (--name)")
			}
			self, err := wire.ClientAuth.Enrol(cmd.Context(), clientauth.EnrolOptions{
				Name:       name,
				Authorised: authorised,
				Password:   flagOrEnv(cmd, "password"),
				SyncKey:    flagOrEnv(cmd, "sync-key"),
			})
			if err != nil {
				return err
			}
			fp, err := wire.Identity.Fingerprint(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Device created.\nClient ID:   %s\nFingerprint: %s\nStatus:      %s\n", self.ID, fp, self.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "device name shown to other devices")
	cmd.Flags().BoolVar(&authorised, "authorised", false, "first device of the account; needs --password and --sync-key")
	cmd.Flags().String("password", "", "account password")
	cmd.Flags().String("sync-key", "", "account sync key")
	return cmd
}
