// Package cache provides JSON value caches keyed by string, backed either by
// an in-process LRU or by Redis.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dermascan-server/internal/domain"
)

// Store is a TTL cache of JSON-encoded values.
type Store interface {
	// Get decodes the value under key into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	// Set stores value under key. A zero ttl uses the store default.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// New builds the store named by cfg.Backend. It returns nil for "none".
func New(cfg domain.CacheConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		store, err := NewMemoryCache(cfg.MaxItems, cfg.DefaultTTL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		store, err := NewRedisCache(cfg)
		if err != nil {
			return nil, err
		}
		logger.WithField("backend", "redis").Info("Connected base score cache")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}
