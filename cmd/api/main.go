package main

import (
	"log/slog"
	"os"

	"github.com/roominai/backend/internal/api"
	"github.com/roominai/backend/internal/config"
	"github.com/roominai/backend/internal/credits"
	"github.com/roominai/backend/internal/notify"
	"github.com/roominai/backend/internal/payments"
	"github.com/roominai/backend/internal/pkg/supabase"
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

	// Initialize Supabase auth client
	if cfg.Supabase.URL != "" {
		if err := supabase.InitClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey); err != nil {
			slog.Error("Failed to initialize Supabase client", "error", err)
			os.Exit(1)
		}
		slog.Info("✅ Connected to Supabase")
	}

	// Initialize Kafka producer
	producer, err := kafka.NewProducer(cfg.Kafka.Broker, cfg.Kafka.RetryMax, cfg.Kafka.RetryBackoff)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()
	slog.Info("✅ Connected to Kafka")

	// Wire up the credit ledger with balance notifications
	notifier := notify.NewNotifier(db.Redis)
	ledger := credits.NewLedger(db.DB, notifier)

	paymentsClient := payments.NewClient(cfg.Stripe.BaseURL, cfg.Stripe.SecretKey,
		cfg.Stripe.SuccessURL, cfg.Stripe.CancelURL)

	// Create and start server
	server := api.NewServer(cfg, db, producer, ledger, paymentsClient)
	if err := server.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
