package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/jewel-store/internal/core/domain"
	"github.com/rl1809/jewel-store/internal/core/pricing"
	"github.com/rl1809/jewel-store/internal/port"
)

const DefaultRateTTL = 600 * time.Second

var ErrRateUnavailable = errors.New("metal rate unavailable")

type rateEntry struct {
	perGram   decimal.Decimal
	fetchedAt time.Time
}

// MetalRateCache memoizes per-gram metal rates for a fixed lifetime. Callers
// that hit an expired entry at the same time share one upstream fetch.
type MetalRateCache struct {
	provider port.RateProvider
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu      sync.RWMutex
	entries map[domain.Metal]rateEntry
	sfg     singleflight.Group
}

type RateCacheOption func(*MetalRateCache)

func WithRateTTL(ttl time.Duration) RateCacheOption {
	return func(c *MetalRateCache) { c.ttl = ttl }
}

func WithClock(now func() time.Time) RateCacheOption {
	return func(c *MetalRateCache) { c.now = now }
}

func NewMetalRateCache(provider port.RateProvider, logger *zap.Logger, opts ...RateCacheOption) *MetalRateCache {
	c := &MetalRateCache{
		provider: provider,
		ttl:      DefaultRateTTL,
		now:      time.Now,
		logger:   logger,
		entries:  make(map[domain.Metal]rateEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRate returns the per-gram rate for metal, fetching from the provider
// when the cached value is missing or older than the cache lifetime.
func (c *MetalRateCache) GetRate(ctx context.Context, metal domain.Metal) (decimal.Decimal, error) {
	if rate, ok := c.fresh(metal); ok {
		return rate, nil
	}

	ch := c.sfg.DoChan(string(metal), func() (interface{}, error) {
		// Another flight may have refreshed the entry while we queued.
		if rate, ok := c.fresh(metal); ok {
			return rate, nil
		}
		return c.refresh(context.WithoutCancel(ctx), metal)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return decimal.Zero, res.Err
		}
		return res.Val.(decimal.Decimal), nil
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}
}

func (c *MetalRateCache) fresh(metal domain.Metal) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[metal]
	if !ok || c.now().Sub(entry.fetchedAt) >= c.ttl {
		return decimal.Zero, false
	}
	return entry.perGram, true
}

func (c *MetalRateCache) refresh(ctx context.Context, metal domain.Metal) (decimal.Decimal, error) {
	symbol := metal.Symbol()
	if symbol == "" {
		return decimal.Zero, fmt.Errorf("%w: unknown metal %q", ErrRateUnavailable, metal)
	}

	perOunce, err := c.provider.FetchRate(ctx, symbol)
	if err != nil {
		c.logger.Warn("metal rate fetch failed", zap.String("metal", string(metal)), zap.Error(err))
		return decimal.Zero, fmt.Errorf("%w: %s: %w", ErrRateUnavailable, metal, err)
	}
	if !perOunce.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s: non-positive rate %s", ErrRateUnavailable, metal, perOunce)
	}

	perGram := pricing.PerGram(perOunce)

	c.mu.Lock()
	c.entries[metal] = rateEntry{perGram: perGram, fetchedAt: c.now()}
	c.mu.Unlock()

	c.logger.Info("metal rate refreshed",
		zap.String("metal", string(metal)),
		zap.String("per_gram", perGram.StringFixed(2)),
	)
	return perGram, nil
}
