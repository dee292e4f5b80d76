package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dermascan-server/internal/domain"
)

func TestNewManager_Defaults(t *testing.T) {
	m, err := NewManagerWithPaths(t.TempDir())
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(16<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 0.2, cfg.Fusion.Alpha)
	assert.Equal(t, 3, cfg.Fusion.TopK)
	assert.Equal(t, 5, cfg.Fusion.TopN)
	assert.Equal(t, "sqlite", cfg.History.Driver)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Equal(t, "random", cfg.Model.Provider)
	assert.NoError(t, m.Validate())
	assert.True(t, m.IsDevelopment())
	assert.False(t, m.IsProduction())
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DERMASCAN_FUSION_ALPHA", "0.5")
	t.Setenv("DERMASCAN_SERVER_PORT", "9191")
	t.Setenv("DERMASCAN_HISTORY_DRIVER", "none")
	t.Setenv("DERMASCAN_ENVIRONMENT", "production")

	m, err := NewManagerWithPaths(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 0.5, m.GetConfig().Fusion.Alpha)
	assert.Equal(t, 9191, m.GetServerConfig().Port)
	assert.Equal(t, "none", m.GetConfig().History.Driver)
	assert.True(t, m.IsProduction())
}

func TestNewManager_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("fusion:\n  alpha: 0.1\n  top_k: 2\nlogging:\n  level: debug\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0644))

	m, err := NewManagerWithPaths(dir)
	require.NoError(t, err)

	assert.Equal(t, 0.1, m.GetConfig().Fusion.Alpha)
	assert.Equal(t, 2, m.GetConfig().Fusion.TopK)
	assert.Equal(t, 5, m.GetConfig().Fusion.TopN)
	assert.Equal(t, "debug", m.GetConfig().Logging.Level)
}

func TestNewManager_MalformedConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("fusion: [unclosed"), 0644))

	_, err := NewManagerWithPaths(dir)

	assert.Error(t, err)
}

func validConfig(t *testing.T) *domain.Config {
	t.Helper()
	m, err := NewManagerWithPaths(t.TempDir())
	require.NoError(t, err)
	return m.GetConfig()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr bool
	}{
		{"defaults", func(c *domain.Config) {}, false},
		{"bad port", func(c *domain.Config) { c.Server.Port = 70000 }, true},
		{"negative alpha", func(c *domain.Config) { c.Fusion.Alpha = -0.1 }, true},
		{"zero alpha allowed", func(c *domain.Config) { c.Fusion.Alpha = 0 }, false},
		{"top k zero", func(c *domain.Config) { c.Fusion.TopK = 0 }, true},
		{"unknown history driver", func(c *domain.Config) { c.History.Driver = "mongo" }, true},
		{"postgres needs host", func(c *domain.Config) {
			c.History.Driver = "postgres"
			c.Database.Host = ""
		}, true},
		{"redis needs url", func(c *domain.Config) {
			c.Cache.Backend = "redis"
			c.Cache.RedisURL = ""
		}, true},
		{"remote needs endpoint", func(c *domain.Config) { c.Model.Provider = "remote" }, true},
		{"unknown provider", func(c *domain.Config) { c.Model.Provider = "onnx" }, true},
		{"bad log level", func(c *domain.Config) { c.Logging.Level = "verbose" }, true},
		{"rate limit without rate", func(c *domain.Config) { c.RateLimit.RequestsPerSecond = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := Validate(cfg)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	url := DatabaseURL(domain.DatabaseConfig{
		Host: "db", Port: 5432, Database: "dermascan", Username: "app", Password: "p@ss", SSLMode: "require",
	})

	assert.Equal(t, "postgres://app:p%40ss@db:5432/dermascan?sslmode=require", url)
}
