package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"walletai/internal/amqp"
	"walletai/internal/config"
	"walletai/internal/log"
	"walletai/internal/services"
	"walletai/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: "sweep-worker"})
	logger.Info("Starting sweep-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Event publishing is optional; without a broker the ledger still
	// works, downstream consumers just have to poll.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without event publishing", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized, booking events will be published")
		}
	} else {
		logger.Info("AMQP disabled, booking events will not be published")
	}

	sweeper := services.NewSweeper(repo, publisher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Sweep scheduler configured",
		"interval", cfg.SweepInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Run an initial sweep on startup, then tick.
		runSweep(ctx, logger, sweeper)

		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				runSweep(ctx, logger, sweeper)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Sweep-worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Sweep-worker shutdown complete")
}

func runSweep(ctx context.Context, logger *log.Logger, sweeper *services.Sweeper) {
	result, err := sweeper.Sweep(ctx, time.Now())
	if err != nil {
		logger.Error("Sweep failed", "error", err)
		return
	}
	logger.Info("Sweep finished",
		"fired", len(result.Fired),
		"conflicts", len(result.Conflicts),
		"failed", len(result.Failed))
	for _, f := range result.Failed {
		logger.Error("Rule failed during sweep", "rule_id", f.RuleID, "error", f.Err)
	}
}
