package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zkxchange/rollexbot/internal/domain"
)

// MarketQuerier abstracts the rollup RPC calls market discovery needs.
type MarketQuerier interface {
	QueryMarkets(ctx context.Context) ([]domain.Market, error)
	QueryTokens(ctx context.Context) ([]domain.Token, error)
}

// MarketService keeps the local market listing in step with the ledger:
// periodic refreshes pull the listing over RPC into the Redis cache and the
// Postgres mirror.
type MarketService struct {
	client MarketQuerier
	store  domain.MarketStore
	cache  domain.MarketCache
	logger *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	client MarketQuerier,
	store domain.MarketStore,
	cache domain.MarketCache,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		client: client,
		store:  store,
		cache:  cache,
		logger: logger.With(slog.String("component", "market_service")),
	}
}

// Refresh pulls the ledger's market and token listings and writes them
// through to the cache and store. Store failures for individual markets are
// logged but do not abort the refresh.
func (s *MarketService) Refresh(ctx context.Context) error {
	markets, err := s.client.QueryMarkets(ctx)
	if err != nil {
		return fmt.Errorf("market_service: query markets: %w", err)
	}

	if err := s.cache.SetAll(ctx, markets); err != nil {
		s.logger.WarnContext(ctx, "market_service: cache refresh failed",
			slog.String("error", err.Error()),
		)
		// Non-fatal: reads fall back to the store.
	}

	for _, m := range markets {
		if err := s.store.Upsert(ctx, m); err != nil {
			s.logger.WarnContext(ctx, "market_service: upsert failed",
				slog.Uint64("market_id", m.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}

	tokens, err := s.client.QueryTokens(ctx)
	if err != nil {
		return fmt.Errorf("market_service: query tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "market_service: refreshed listings",
		slog.Int("markets", len(markets)),
		slog.Int("tokens", len(tokens)),
	)
	return nil
}

// Run refreshes the listings on the given interval until ctx is cancelled.
// The first refresh happens immediately.
func (s *MarketService) Run(ctx context.Context, interval time.Duration) error {
	if err := s.Refresh(ctx); err != nil {
		s.logger.ErrorContext(ctx, "market_service: initial refresh failed",
			slog.String("error", err.Error()),
		)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.ErrorContext(ctx, "market_service: refresh failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// GetMarket retrieves a market by id, checking the cache first and falling
// back to the persistent mirror on a miss.
func (s *MarketService) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	m, err := s.cache.Get(ctx, id)
	if err == nil {
		return m, nil
	}

	m, err = s.store.Get(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get market %d: %w", id, err)
	}

	// Back-fill cache; log but do not fail on cache write errors.
	if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
		s.logger.WarnContext(ctx, "market_service: cache set failed",
			slog.Uint64("market_id", id),
			slog.String("error", cacheErr.Error()),
		)
	}

	return m, nil
}

// ListMarkets returns the full market listing, preferring the cache.
func (s *MarketService) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	if markets, err := s.cache.All(ctx); err == nil && len(markets) > 0 {
		return markets, nil
	}

	markets, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("market_service: list markets: %w", err)
	}
	return markets, nil
}
