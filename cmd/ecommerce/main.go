package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"3tcapital/ms_ecommerce_audit/internal/infrastructure/config"
	"3tcapital/ms_ecommerce_audit/internal/infrastructure/logger"
)

// Build-time variable set via ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "service stopped: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ecommerce",
		Short:         "E-commerce API with an asynchronous HTTP audit pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAPICmd(), newWorkerCmd())
	return root
}

// appEnv bundles what every command needs before it starts serving.
type appEnv struct {
	cfg config.AppConfig
	log *slog.Logger
}

// bootstrap loads configuration, builds the logger and returns a context
// cancelled on SIGINT or SIGTERM.
func bootstrap(parent context.Context, component string) (context.Context, context.CancelFunc, appEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, appEnv{}, fmt.Errorf("load config: %w", err)
	}

	log := logger.Component(logger.New(cfg.App.Name, cfg.Log.Level, cfg.Log.Format, cfg.App.Environment), component)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	return ctx, stop, appEnv{cfg: cfg, log: log}, nil
}
