package domain

import (
	"context"
	"io"
	"time"
)

// MarketCache caches the ledger's market listing between refresh cycles.
type MarketCache interface {
	Set(ctx context.Context, market Market) error
	Get(ctx context.Context, id uint64) (Market, error)
	SetAll(ctx context.Context, markets []Market) error
	All(ctx context.Context) ([]Market, error)
}

// RateLimiter gates outbound transaction submission.
type RateLimiter interface {
	// Allow reports whether one more request under key is permitted within
	// the window, counting the request if so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver exports aged local records to blob storage.
type Archiver interface {
	ArchiveTrades(ctx context.Context, before time.Time) (string, int, error)
	ArchiveOrders(ctx context.Context, before time.Time) (string, int, error)
}
