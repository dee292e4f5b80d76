// Package config provides configuration management for the DermaScan servers.
// This file contains the lightweight configuration for the standalone MCP server.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dermascan-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It needs no external services: history lives in a local SQLite file and
// the base-score cache is in memory.
type LiteConfig struct {
	DataDir string // Base directory for data files

	CacheMaxItems int
	CacheTTL      time.Duration

	Alpha float64

	// ModelEndpoint switches base scores to a remote model when set.
	ModelEndpoint string
	ModelAPIKey   string

	Transport string // stdio only for now

	LogLevel  string
	LogFormat string
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()

	return &LiteConfig{
		DataDir:       filepath.Join(homeDir, ".dermascan"),
		CacheMaxItems: 1000,
		CacheTTL:      24 * time.Hour,
		Alpha:         0.2,
		Transport:     "stdio",
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from DERMASCAN_* environment variables,
// keeping defaults for anything unset or unparsable.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("DERMASCAN_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DERMASCAN_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("DERMASCAN_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}
	if v := os.Getenv("DERMASCAN_FUSION_ALPHA"); v != "" {
		if a, err := strconv.ParseFloat(v, 64); err == nil && a >= 0 {
			cfg.Alpha = a
		}
	}

	cfg.ModelEndpoint = os.Getenv("DERMASCAN_MODEL_ENDPOINT")
	cfg.ModelAPIKey = os.Getenv("DERMASCAN_MODEL_API_KEY")

	if v := os.Getenv("DERMASCAN_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("DERMASCAN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DERMASCAN_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// HistoryDBPath returns the path to the history SQLite database.
func (c *LiteConfig) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// ToConfig expands the lite settings into a full configuration so both
// servers share the same constructors.
func (c *LiteConfig) ToConfig() *domain.Config {
	provider := "random"
	if c.ModelEndpoint != "" {
		provider = "remote"
	}

	return &domain.Config{
		Server: domain.ServerConfig{Port: 8080, MaxUploadBytes: 16 << 20},
		History: domain.HistoryConfig{
			Driver:     "sqlite",
			SQLitePath: c.HistoryDBPath(),
		},
		Cache: domain.CacheConfig{
			Backend:    "memory",
			MaxItems:   c.CacheMaxItems,
			DefaultTTL: c.CacheTTL,
		},
		Fusion: domain.FusionConfig{Alpha: c.Alpha, TopK: 3, TopN: 5},
		Model: domain.ModelConfig{
			Provider:   provider,
			Endpoint:   c.ModelEndpoint,
			APIKey:     c.ModelAPIKey,
			Timeout:    30 * time.Second,
			RateLimit:  5,
			RetryCount: 2,
		},
		Logging: domain.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: "stderr"},
		MCP: domain.MCPConfig{
			ServerName:     "dermascan-lite",
			ServerVersion:  "1.0.0",
			TransportType:  c.Transport,
			RequestTimeout: 60 * time.Second,
		},
	}
}
