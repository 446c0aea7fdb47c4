package main

import (
	"context"
	"time"

	"buste/internal/cli"
	applog "buste/internal/log"
	"buste/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger().WithComponent(applog.ComponentWorker)

	logger.Info("Starting cycle-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient := cli.InitAMQP(logger, cfg, false)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	cards := services.NewCardService(repo, amqpClient)

	ctx, stop := cli.NotifyShutdown(context.Background())
	defer stop()

	logger.Info("Billing cycle roller configured",
		"interval", cfg.CycleRollInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	roll := func(now time.Time) {
		closed, err := cards.RollCycles(ctx, now)
		if err != nil {
			logger.Error("Cycle roll failed", "error", err)
			return
		}
		logger.Info("Cycle roll complete",
			"cycles_closed", closed,
			"next_check", now.Add(cfg.CycleRollInterval).Format("15:04:05"))
	}

	// Roll once on startup, then on the configured interval.
	roll(time.Now())

	ticker := time.NewTicker(cfg.CycleRollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cycle-worker shutdown complete")
			return
		case now := <-ticker.C:
			roll(now)
		}
	}
}
