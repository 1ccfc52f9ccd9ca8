package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cgpvp/cgpvp/internal/app"
	"github.com/cgpvp/cgpvp/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cgpvp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Bootstrap logger until the configured one exists
	boot, err := zap.NewProduction()
	if err != nil {
		return err
	}

	cfg, err := app.LoadConfig(boot.Sugar())
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Infof("cgpvp starting (database: %s, schedule: %q)", cfg.Database.Driver, cfg.Schedule.Cron)
	if !a.IsAuthenticated() {
		logger.Info("No stored Facebook login, scraping anonymously")
	}

	if err := a.Serve(ctx); err != nil {
		return err
	}
	logger.Info("cgpvp stopped")
	return nil
}
