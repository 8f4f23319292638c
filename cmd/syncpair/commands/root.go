package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"syncpair/internal/app"
)

var (
	cfgViper *viper.Viper
	wire     *app.Wire
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		if wire != nil {
			_ = wire.Close()
		}
	}()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	cfgViper = app.NewViper()

	root := &cobra.Command{
		Use:           "syncpair",
		Short:         "Authorise new devices for a sync account",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			cfg, err := app.LoadConfig(cfgViper)
			if err != nil {
				return err
			}
			if cfg.Passphrase == "" {
				return fmt.Errorf("passphrase required (-p or %s_PASSPHRASE)", app.EnvPrefix)
			}
			log, err := app.NewLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			wire, err = app.NewWire(cmd.Context(), cfg, log, nil)
			return err
		},
	}

	root.CompletionOptions.DisableDefaultCmd = true
	if err := app.BindFlags(cfgViper, root.PersistentFlags()); err != nil {
		panic(err)
	}

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		authoriseCmd(),
		pendingCmd(),
		approveCmd(),
		rejectCmd(),
		pollCmd(),
		statusCmd(),
		resetCmd(),
	)
	return root
}

// flagOrEnv returns a subcommand flag, falling back to SYNCPAIR_<KEY>.
func flagOrEnv(cmd *cobra.Command, key string) string {
	if f := cmd.Flags().Lookup(key); f != nil && f.Changed {
		return f.Value.String()
	}
	return cfgViper.GetString(key)
}
