package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/roominai/backend/internal/config"
	"github.com/roominai/backend/internal/credits"
	"github.com/roominai/backend/internal/jobs"
	"github.com/roominai/backend/internal/notify"
	"github.com/roominai/backend/internal/replicate"
	"github.com/roominai/backend/internal/storage"
	"github.com/roominai/backend/internal/worker"
	"github.com/roominai/backend/pkg/database"
	"github.com/roominai/backend/pkg/kafka"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize database clients
	db, err := database.NewClients(cfg.Database.URL, cfg.Redis.Addr)
	if err != nil {
		slog.Error("Failed to initialize database clients", "error", err)
		os.Exit(1)
	}
	defer db.DB.Close()
	slog.Info("✅ Connected to databases")

	if err := db.EnsureSchema(); err != nil {
		slog.Error("Failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka consumer
	consumer, err := kafka.NewConsumer(cfg.Kafka.Broker, cfg.Kafka.Group)
	if err != nil {
		slog.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()
	slog.Info("✅ Connected to Kafka")

	// Local cache for generated images
	store, err := storage.NewLocalStorage(cfg.Storage.OutputDir)
	if err != nil {
		slog.Error("Failed to initialize image storage", "error", err)
		os.Exit(1)
	}

	notifier := notify.NewNotifier(db.Redis)
	ledger := credits.NewLedger(db.DB, notifier)
	generator := replicate.NewClient(cfg.Replicate.BaseURL, cfg.Replicate.APIKey, cfg.Replicate.ModelVersion)
	handler := jobs.NewHandler(db, ledger, generator, store,
		cfg.Replicate.PollInterval, cfg.Replicate.MaxPollAttempts)

	// Create and start worker
	worker := worker.NewWorker(cfg, handler, consumer)

	ctx := context.Background()
	if err := worker.Start(ctx); err != nil {
		slog.Error("Worker error", "error", err)
		os.Exit(1)
	}
}
