// Package main provides the standalone DermaScan MCP server.
// It needs no external services: history lives in SQLite under the data
// directory and base scores are cached in memory.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dermascan-server/internal/app"
	"github.com/dermascan-server/internal/config"
	"github.com/dermascan-server/internal/logging"
	"github.com/dermascan-server/internal/mcp"
	"github.com/dermascan-server/internal/setup"
)

func main() {
	_ = godotenv.Load()

	// Load lightweight configuration
	lite := config.LoadLiteConfig()

	// Check for setup subcommand
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		cli := setup.NewCLI(os.Stdout, lite.DataDir)
		if err := cli.Run(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	if err := lite.EnsureDataDir(); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	cfg := lite.ToConfig()
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	logger := logging.New(cfg.Logging)
	logger.WithField("data_dir", lite.DataDir).Info("Starting DermaScan MCP Server (Lite)")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build diagnosis pipeline")
	}
	defer components.Close()

	server := mcp.NewServer(cfg, logger, components.Diagnosis,
		mcp.WithHistoryStore(components.History),
		mcp.WithExportDir(lite.ExportDir()),
	)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start MCP server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("DermaScan MCP Server (Lite) stopped")
}
