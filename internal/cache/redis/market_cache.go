package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zkxchange/rollexbot/internal/domain"
)

const marketTTL = 5 * time.Minute

// MarketCache implements domain.MarketCache using a single Redis hash of
// JSON-serialized markets keyed by ledger market id.
//
// Key schema:
//
//	markets - hash, field {marketId} -> JSON
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

const marketsKey = "markets"

func marketField(id uint64) string { return strconv.FormatUint(id, 10) }

// Set stores one market and refreshes the listing TTL.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %d: %w", market.MarketID, err)
	}

	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, marketsKey, marketField(market.MarketID), data)
	pipe.Expire(ctx, marketsKey, marketTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %d: %w", market.MarketID, err)
	}
	return nil
}

// SetAll atomically replaces the cached listing with the given markets.
func (mc *MarketCache) SetAll(ctx context.Context, markets []domain.Market) error {
	fields := make(map[string]any, len(markets))
	for _, m := range markets {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("redis: marshal market %d: %w", m.MarketID, err)
		}
		fields[marketField(m.MarketID)] = data
	}

	pipe := mc.rdb.TxPipeline()
	pipe.Del(ctx, marketsKey)
	if len(fields) > 0 {
		pipe.HSet(ctx, marketsKey, fields)
		pipe.Expire(ctx, marketsKey, marketTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set all markets: %w", err)
	}
	return nil
}

// Get retrieves a market by its ledger id. It returns
// domain.ErrMarketNotFound when the listing has no such market.
func (mc *MarketCache) Get(ctx context.Context, id uint64) (domain.Market, error) {
	data, err := mc.rdb.HGet(ctx, marketsKey, marketField(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrMarketNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %d: %w", id, err)
	}

	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %d: %w", id, err)
	}
	return market, nil
}

// All returns every cached market. An expired or empty listing yields an
// empty slice, not an error.
func (mc *MarketCache) All(ctx context.Context) ([]domain.Market, error) {
	fields, err := mc.rdb.HGetAll(ctx, marketsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list markets: %w", err)
	}

	markets := make([]domain.Market, 0, len(fields))
	for field, data := range fields {
		var market domain.Market
		if err := json.Unmarshal([]byte(data), &market); err != nil {
			return nil, fmt.Errorf("redis: unmarshal market %s: %w", field, err)
		}
		markets = append(markets, market)
	}
	return markets, nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
