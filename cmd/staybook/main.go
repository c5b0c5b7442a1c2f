package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"staybook/internal/infra/config"
	"staybook/internal/infra/obs"
)

var rootCmd = &cobra.Command{
	Use:          "staybook",
	Short:        "Booking engine for short-term rental listings",
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(expireBookingsCmd())
	rootCmd.AddCommand(syncCalendarsCmd())
	rootCmd.AddCommand(notifyCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the runtime shared by every
// subcommand. The returned close func must be called on exit.
func setup(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return nil, err
	}
	return rt, nil
}
