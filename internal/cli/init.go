// Package cli provides common initialization for the buste binaries:
// cmd/buste, cmd/buste-worker and cmd/cycle-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"buste/internal/amqp"
	"buste/internal/config"
	applog "buste/internal/log"
	"buste/internal/sheets"
	gsheet "buste/internal/sheets/google"
	"buste/internal/sheets/memory"
	"buste/internal/storage"
)

// SetupLogger initializes structured logging and sets it as the default.
func SetupLogger() *applog.Logger {
	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development. Errors are
// ignored; the file is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it, exiting the
// process on failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the ledger database, exiting the process on failure.
func InitSQLite(logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// InitAMQP connects to the broker when configured. A missing AMQP_URL means
// the ledger runs without event publication; a configured but unreachable
// broker is fatal for consumers and downgraded to a warning for publishers.
func InitAMQP(logger *applog.Logger, cfg *config.Config, required bool) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - ledger events will not be published")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		if required {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		logger.Warn("Failed to initialize AMQP client, continuing without event publication", "error", err)
		return nil
	}
	return client
}

// InitEventWriter picks the spreadsheet mirror target: Google Sheets when a
// spreadsheet is configured, the in-memory writer otherwise.
func InitEventWriter(ctx context.Context, logger *applog.Logger, cfg *config.Config) sheets.EventWriter {
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - mirroring events in memory only")
		return memory.NewWriter()
	}
	client, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client
}

// NotifyShutdown returns a context cancelled on SIGINT or SIGTERM.
func NotifyShutdown(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
