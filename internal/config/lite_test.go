package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var liteEnvVars = []string{
	"DERMASCAN_DATA_DIR",
	"DERMASCAN_CACHE_MAX_ITEMS",
	"DERMASCAN_CACHE_TTL",
	"DERMASCAN_FUSION_ALPHA",
	"DERMASCAN_MODEL_ENDPOINT",
	"DERMASCAN_MODEL_API_KEY",
	"DERMASCAN_TRANSPORT",
	"DERMASCAN_LOG_LEVEL",
	"DERMASCAN_LOG_FORMAT",
}

func clearLiteEnv(t *testing.T) {
	t.Helper()
	for _, v := range liteEnvVars {
		t.Setenv(v, "")
	}
}

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 0.2, cfg.Alpha)
	assert.Equal(t, "stdio", cfg.Transport)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearLiteEnv(t)
	t.Setenv("DERMASCAN_DATA_DIR", "/tmp/test-dermascan")
	t.Setenv("DERMASCAN_CACHE_MAX_ITEMS", "500")
	t.Setenv("DERMASCAN_CACHE_TTL", "12h")
	t.Setenv("DERMASCAN_FUSION_ALPHA", "0.35")
	t.Setenv("DERMASCAN_MODEL_ENDPOINT", "http://model:5000")
	t.Setenv("DERMASCAN_LOG_LEVEL", "debug")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-dermascan", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 0.35, cfg.Alpha)
	assert.Equal(t, "http://model:5000", cfg.ModelEndpoint)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadLiteConfig_IgnoresBadValues(t *testing.T) {
	clearLiteEnv(t)
	t.Setenv("DERMASCAN_CACHE_MAX_ITEMS", "lots")
	t.Setenv("DERMASCAN_FUSION_ALPHA", "-1")

	cfg := LoadLiteConfig()

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, 0.2, cfg.Alpha)
}

func TestLiteConfig_Paths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.dermascan"}

	assert.Equal(t, "/home/user/.dermascan/history.db", cfg.HistoryDBPath())
	assert.Equal(t, "/home/user/.dermascan/exports", cfg.ExportDir())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "dermascan")}

	require.NoError(t, cfg.EnsureDataDir())

	assert.DirExists(t, cfg.DataDir)
	assert.DirExists(t, cfg.ExportDir())
}

func TestLiteConfig_ToConfigValidates(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/data", CacheMaxItems: 10, CacheTTL: time.Hour, Alpha: 0.2, Transport: "stdio", LogLevel: "info"}

	full := cfg.ToConfig()

	assert.Equal(t, "sqlite", full.History.Driver)
	assert.Equal(t, "/data/history.db", full.History.SQLitePath)
	assert.Equal(t, "memory", full.Cache.Backend)
	assert.Equal(t, "random", full.Model.Provider)
	assert.NoError(t, Validate(full))

	cfg.ModelEndpoint = "http://model:5000"
	assert.Equal(t, "remote", cfg.ToConfig().Model.Provider)
}
