package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/pkg/cache"
)

const priceNamespace = "prices"

// priceServiceImpl caches per-source quote maps so concurrent account
// fetches against the same source share one upstream price call per TTL
// window. A per-source mutex serializes the cache-miss path.
type priceServiceImpl struct {
	registry port.SourceRegistry
	cache    *cache.Cache
	ttl      time.Duration
	logger   port.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPriceService creates the shared price service.
func NewPriceService(registry port.SourceRegistry, c *cache.Cache, ttl time.Duration, logger port.Logger) port.PriceService {
	return &priceServiceImpl{
		registry: registry,
		cache:    c,
		ttl:      ttl,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// PricesFor implements port.PriceService.
func (s *priceServiceImpl) PricesFor(ctx context.Context, source string) (entity.PriceMap, error) {
	if cached, _, ok := s.cache.Get(priceNamespace, source); ok {
		if prices, ok := cached.(entity.PriceMap); ok {
			return prices, nil
		}
	}

	lock := s.sourceLock(source)
	lock.Lock()
	defer lock.Unlock()

	// A concurrent caller may have filled the cache while we waited.
	if cached, _, ok := s.cache.Get(priceNamespace, source); ok {
		if prices, ok := cached.(entity.PriceMap); ok {
			return prices, nil
		}
	}

	adapter, ok := s.registry.Adapter(source)
	if !ok {
		return nil, entity.NewConfigurationError(source, "no adapter registered")
	}

	prices, err := adapter.FetchPrices(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(priceNamespace, source, prices, s.ttl)
	s.logger.Debug("Refreshed price map", "source", source, "assets", len(prices))
	return prices, nil
}

// WarmUp fetches quote maps for all registered sources concurrently. Warm-up
// failures are logged and tolerated; the first real fetch retries them.
func (s *priceServiceImpl) WarmUp(ctx context.Context, maxConcurrent int) {
	g, ctx := errgroup.WithContext(ctx)
	if maxConcurrent > 0 {
		g.SetLimit(maxConcurrent)
	}
	for _, source := range s.registry.Sources() {
		g.Go(func() error {
			if _, err := s.PricesFor(ctx, source); err != nil {
				s.logger.Warn("Price warm-up failed", "source", source, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *priceServiceImpl) sourceLock(source string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[source]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[source] = lock
	}
	return lock
}
