package domain

import (
	"context"
	"time"
)

// OrderStore mirrors orders this client has submitted.
type OrderStore interface {
	Insert(ctx context.Context, order OrderRecord) error
	Get(ctx context.Context, id uint64) (OrderRecord, error)
	ListByMarket(ctx context.Context, marketID uint64, limit int) ([]OrderRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]OrderRecord, error)
}

// TradeStore mirrors trades this client has settled.
type TradeStore interface {
	Insert(ctx context.Context, trade TradeRecord) error
	ListByMarket(ctx context.Context, marketID uint64, limit int) ([]TradeRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]TradeRecord, error)
}

// MarketStore mirrors the ledger's market listing.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	Get(ctx context.Context, id uint64) (Market, error)
	List(ctx context.Context) ([]Market, error)
}
