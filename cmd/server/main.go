package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dermascan-server/internal/api"
	"github.com/dermascan-server/internal/app"
	"github.com/dermascan-server/internal/config"
	"github.com/dermascan-server/internal/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := logging.New(cfg.Logging)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(ctx, cfg, logger, os.Stdout, os.Args[2:]); err != nil {
			logger.WithError(err).Fatal("Migration command failed")
		}
		return
	}

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build diagnosis pipeline")
	}
	defer components.Close()

	var opts []api.Option
	if components.DB != nil {
		opts = append(opts, api.WithDatabase(components.DB))
	}
	if components.History != nil {
		opts = append(opts, api.WithHistoryStore(components.History))
	}
	server := api.NewServer(cfg, logger, components.Diagnosis, opts...)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	logger.WithField("production", configManager.IsProduction()).Info("Starting DermaScan server")
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		return
	}

	logger.Info("Server stopped")
}
