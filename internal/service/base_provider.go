package service

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dermascan-server/internal/cache"
	"github.com/dermascan-server/internal/domain"
	"github.com/dermascan-server/internal/imaging"
)

// Ranges for the placeholder image classifier.
const (
	dominantMin = 0.6
	dominantMax = 0.9
	residualMax = 0.2
)

// RandomProvider stands in for an image classifier: one randomly chosen
// dominant condition scores in [0.6, 0.9), every other in [0, 0.2).
type RandomProvider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomProvider creates a provider; a nil rng is seeded from the clock.
func NewRandomProvider(rng *rand.Rand) *RandomProvider {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomProvider{rng: rng}
}

// BaseScores implements domain.BaseDistributionProvider.
func (p *RandomProvider) BaseScores(ctx context.Context, img image.Image) ([]float64, error) {
	if img == nil {
		return nil, domain.ErrInputMissing
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	scores := make([]float64, domain.NumConditions)
	dominant := p.rng.Intn(domain.NumConditions)
	for i := range scores {
		if i == dominant {
			scores[i] = dominantMin + p.rng.Float64()*(dominantMax-dominantMin)
			continue
		}
		scores[i] = p.rng.Float64() * residualMax
	}
	return scores, nil
}

// FixedProvider always returns the same scores. Used to make fusion
// reproducible.
type FixedProvider struct {
	scores []float64
}

// NewFixedProvider copies scores so later changes by the caller do not leak in.
func NewFixedProvider(scores []float64) *FixedProvider {
	s := make([]float64, len(scores))
	copy(s, scores)
	return &FixedProvider{scores: s}
}

// BaseScores implements domain.BaseDistributionProvider.
func (p *FixedProvider) BaseScores(ctx context.Context, img image.Image) ([]float64, error) {
	if img == nil {
		return nil, domain.ErrInputMissing
	}
	out := make([]float64, len(p.scores))
	copy(out, p.scores)
	return out, nil
}

// CachedProvider memoises another provider's scores by image content, so the
// same upload gets the same prior until the entry expires.
type CachedProvider struct {
	next   domain.BaseDistributionProvider
	store  cache.Store
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCachedProvider wraps next with store.
func NewCachedProvider(next domain.BaseDistributionProvider, store cache.Store, ttl time.Duration, logger *logrus.Logger) *CachedProvider {
	return &CachedProvider{next: next, store: store, ttl: ttl, logger: logger}
}

type cachedScores struct {
	Scores   []float64 `json:"scores"`
	CachedAt time.Time `json:"cached_at"`
}

// BaseScores implements domain.BaseDistributionProvider.
func (p *CachedProvider) BaseScores(ctx context.Context, img image.Image) ([]float64, error) {
	if img == nil {
		return nil, domain.ErrInputMissing
	}

	key := "base_scores:" + imaging.Fingerprint(img)

	var hit cachedScores
	found, err := p.store.Get(ctx, key, &hit)
	if err != nil {
		p.logger.WithError(err).WithField("cache_key", key).Warn("Base score cache read failed")
	} else if found && len(hit.Scores) == domain.NumConditions {
		p.logger.WithField("cache_key", key).Debug("Base score cache hit")
		return hit.Scores, nil
	}

	scores, err := p.next.BaseScores(ctx, img)
	if err != nil {
		return nil, err
	}

	entry := cachedScores{Scores: scores, CachedAt: time.Now().UTC()}
	if err := p.store.Set(ctx, key, entry, p.ttl); err != nil {
		p.logger.WithError(err).WithField("cache_key", key).Warn("Base score cache write failed")
	}
	return scores, nil
}

// NewBaseProvider builds the provider chain named by the model config.
func NewBaseProvider(cfg domain.ModelConfig, remote domain.BaseDistributionProvider) (domain.BaseDistributionProvider, error) {
	switch cfg.Provider {
	case "", "random":
		return NewRandomProvider(nil), nil
	case "remote":
		if remote == nil {
			return nil, fmt.Errorf("remote model provider selected but no client configured")
		}
		return remote, nil
	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.Provider)
	}
}
