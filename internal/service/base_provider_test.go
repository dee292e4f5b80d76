package service

import (
	"context"
	"errors"
	"image"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dermascan-server/internal/cache"
	"github.com/dermascan-server/internal/domain"
)

func TestRandomProvider_Ranges(t *testing.T) {
	p := NewRandomProvider(rand.New(rand.NewSource(42)))

	for run := 0; run < 200; run++ {
		scores, err := p.BaseScores(context.Background(), testImage())
		require.NoError(t, err)
		require.Len(t, scores, domain.NumConditions)

		dominant := 0
		for _, s := range scores {
			if s >= dominantMin {
				assert.Less(t, s, dominantMax)
				dominant++
				continue
			}
			assert.GreaterOrEqual(t, s, 0.0)
			assert.Less(t, s, residualMax)
		}
		assert.Equal(t, 1, dominant)
	}
}

func TestRandomProvider_MissingImage(t *testing.T) {
	_, err := NewRandomProvider(nil).BaseScores(context.Background(), nil)

	assert.ErrorIs(t, err, domain.ErrInputMissing)
}

func TestFixedProvider_CopiesScores(t *testing.T) {
	src := []float64{1, 2, 3}
	p := NewFixedProvider(src)
	src[0] = 100

	got, err := p.BaseScores(context.Background(), testImage())
	require.NoError(t, err)
	got[1] = 100

	again, _ := p.BaseScores(context.Background(), testImage())
	assert.Equal(t, []float64{1, 2, 3}, again)
}

type countingProvider struct {
	calls int
	next  domain.BaseDistributionProvider
	err   error
}

func (c *countingProvider) BaseScores(ctx context.Context, img image.Image) ([]float64, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.next.BaseScores(ctx, img)
}

func TestCachedProvider_MemoisesByContent(t *testing.T) {
	store, err := cache.NewMemoryCache(16, time.Minute)
	require.NoError(t, err)
	inner := &countingProvider{next: NewRandomProvider(rand.New(rand.NewSource(1)))}
	p := NewCachedProvider(inner, store, time.Minute, testLogger())

	first, err := p.BaseScores(context.Background(), testImage())
	require.NoError(t, err)
	second, err := p.BaseScores(context.Background(), testImage())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	other := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	_, err = p.BaseScores(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedProvider_PropagatesErrors(t *testing.T) {
	store, err := cache.NewMemoryCache(16, time.Minute)
	require.NoError(t, err)
	boom := errors.New("model offline")
	p := NewCachedProvider(&countingProvider{err: boom}, store, time.Minute, testLogger())

	_, err = p.BaseScores(context.Background(), testImage())

	assert.ErrorIs(t, err, boom)
}

func TestNewBaseProvider(t *testing.T) {
	p, err := NewBaseProvider(domain.ModelConfig{Provider: "random"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &RandomProvider{}, p)

	remote := NewFixedProvider(fixedBase)
	p, err = NewBaseProvider(domain.ModelConfig{Provider: "remote"}, remote)
	require.NoError(t, err)
	assert.Same(t, remote, p)

	_, err = NewBaseProvider(domain.ModelConfig{Provider: "remote"}, nil)
	assert.Error(t, err)

	_, err = NewBaseProvider(domain.ModelConfig{Provider: "onnx"}, nil)
	assert.Error(t, err)
}
