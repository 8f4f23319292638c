package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"syncpair/internal/app"
	"syncpair/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "storaged:", err)
		os.Exit(1)
	}
}

func run() error {
	v := viper.New()
	v.SetEnvPrefix("STORAGED")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := pflag.NewFlagSet("storaged", pflag.ExitOnError)
	fs.String("addr", ":8080", "listen address")
	fs.String("token", "", "bearer token required on /storage requests")
	fs.String("log-level", "info", "log level")
	fs.String("log-format", "console", "log format (console, json)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if err := v.BindPFlags(fs); err != nil {
		return err
	}

	log, err := app.NewLogger(v.GetString("log-level"), v.GetString("log-format"), os.Stderr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           storage.NewHandler(storage.NewMemory(), log, v.GetString("token")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Bool("token", v.GetString("token") != "").Msg("storaged listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
