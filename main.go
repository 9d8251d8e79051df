package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"onboarding-forms/internal/bootstrap"
	"onboarding-forms/internal/cli"
	"onboarding-forms/internal/config"
	"onboarding-forms/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	log := logging.Default(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := func(ctx context.Context) (*cli.App, error) {
		c, err := bootstrap.Wire(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if config.IsMockMode() {
			fmt.Fprintf(os.Stderr, "Running in MOCK mode (data from: %s)\n", cfg.DataStore.MockDataPath)
		}
		return &cli.App{
			Store:            c.Store,
			Service:          c.Service,
			Log:              log,
			Mode:             cfg.DataStore.Type,
			ConnectionString: cfg.DataStore.ConnectionString,
			Close:            c.Close,
		}, nil
	}

	if err := cli.NewRootCommand(build).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
