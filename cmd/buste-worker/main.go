package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"buste/internal/cli"
	applog "buste/internal/log"
	"buste/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger().WithComponent(applog.ComponentWorker)

	logger.Info("Starting buste-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required: the mirror worker consumes ledger events from the broker")
		os.Exit(1)
	}

	ctx, stop := cli.NotifyShutdown(context.Background())
	defer stop()

	writer := cli.InitEventWriter(ctx, logger, cfg)

	amqpClient := cli.InitAMQP(logger, cfg, true)
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(writer)

	g, gctx := errgroup.WithContext(ctx)

	// Consume until shutdown, reconnecting on broken broker connections.
	g.Go(func() error {
		for {
			err := mirror.Run(gctx, amqpClient)
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.Warn("Ledger event consumption interrupted, reconnecting", "error", err)
			if err := amqpClient.Reconnect(gctx, cfg.AMQPURL); err != nil {
				return err
			}
		}
	})

	// Periodic progress heartbeat.
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				logger.Info("Mirror worker heartbeat", "events_mirrored", mirror.Mirrored())
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Mirror worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Mirror worker shutdown complete", "events_mirrored", mirror.Mirrored())
}
