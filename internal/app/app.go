// Package app assembles the diagnosis pipeline and its collaborators from
// configuration. Both the HTTP server and the MCP servers build on it.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dermascan-server/internal/cache"
	"github.com/dermascan-server/internal/config"
	"github.com/dermascan-server/internal/database"
	"github.com/dermascan-server/internal/domain"
	"github.com/dermascan-server/internal/history"
	"github.com/dermascan-server/internal/overlay"
	"github.com/dermascan-server/internal/service"
	"github.com/dermascan-server/pkg/external"
)

// Components holds everything a server needs. Optional parts are nil when
// disabled by configuration.
type Components struct {
	Config    *domain.Config
	Logger    *logrus.Logger
	Diagnosis *service.DiagnosisService
	History   history.Store
	Cache     cache.Store
	Model     *external.InferenceClient
	DB        *database.DB
}

// Build wires the pipeline described by cfg.
func Build(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*Components, error) {
	c := &Components{Config: cfg, Logger: logger}

	var remote domain.BaseDistributionProvider
	if cfg.Model.Provider == "remote" {
		client, err := external.NewInferenceClient(external.InferenceConfig{
			Endpoint:   cfg.Model.Endpoint,
			APIKey:     cfg.Model.APIKey,
			Timeout:    cfg.Model.Timeout,
			RateLimit:  cfg.Model.RateLimit,
			RetryCount: cfg.Model.RetryCount,
			RetryDelay: cfg.Model.RetryDelay,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating model client: %w", err)
		}
		c.Model = client
		remote = client
	}

	provider, err := service.NewBaseProvider(cfg.Model, remote)
	if err != nil {
		return nil, err
	}

	store, err := cache.New(cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	if store != nil {
		c.Cache = store
		provider = service.NewCachedProvider(provider, store, cfg.Cache.DefaultTTL, logger)
	}

	engine, err := service.NewFusionEngine(logger, provider, cfg.Fusion.Alpha)
	if err != nil {
		c.Close()
		return nil, err
	}

	if err := c.openHistory(ctx); err != nil {
		c.Close()
		return nil, err
	}

	opts := []service.DiagnosisOption{
		service.WithTopK(cfg.Fusion.TopK),
		service.WithTopN(cfg.Fusion.TopN),
	}
	if c.History != nil {
		opts = append(opts, service.WithHistory(c.History))
	}
	c.Diagnosis = service.NewDiagnosisService(logger, engine, overlay.NewGenerator(), opts...)

	logger.WithFields(logrus.Fields{
		"model_provider": cfg.Model.Provider,
		"cache_backend":  cfg.Cache.Backend,
		"history_driver": cfg.History.Driver,
		"alpha":          engine.Alpha(),
	}).Info("Diagnosis pipeline ready")

	return c, nil
}

func (c *Components) openHistory(ctx context.Context) error {
	cfg := c.Config
	var dbURL string

	if cfg.History.Driver == "postgres" {
		dbURL = config.DatabaseURL(cfg.Database)
		if cfg.History.AutoMigrate {
			if err := database.Migrate(ctx, dbURL, cfg.History.MigrationsPath, c.Logger); err != nil {
				return fmt.Errorf("migrating history schema: %w", err)
			}
		}
		db, err := database.NewConnection(ctx, cfg.Database, c.Logger)
		if err != nil {
			return err
		}
		c.DB = db
	}

	store, err := history.New(cfg.History, cfg.Database, dbURL)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	c.History = store
	return nil
}

// Close releases stores and pools.
func (c *Components) Close() {
	if c.History != nil {
		if err := c.History.Close(); err != nil {
			c.Logger.WithError(err).Error("Failed to close history store")
		}
	}
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			c.Logger.WithError(err).Error("Failed to close cache")
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
