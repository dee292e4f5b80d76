package domain

import (
	"context"
	"image"
)

// BaseDistributionProvider produces the image-derived prior: an N-vector of
// non-negative scores aligned to the catalog. It need not be normalized.
type BaseDistributionProvider interface {
	BaseScores(ctx context.Context, img image.Image) ([]float64, error)
}

// OverlayGenerator renders the attention overlay for a primary diagnosis.
type OverlayGenerator interface {
	Generate(src image.Image, label Condition) (*image.NRGBA, error)
}

// HistorySink receives finished diagnoses for persistence.
type HistorySink interface {
	Save(ctx context.Context, record *DiagnosisRecord) (*DiagnosisRecord, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
