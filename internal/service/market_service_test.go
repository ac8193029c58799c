package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/zkxchange/rollexbot/internal/domain"
)

type fakeQuerier struct {
	markets []domain.Market
	tokens  []domain.Token
	err     error
}

func (f *fakeQuerier) QueryMarkets(context.Context) ([]domain.Market, error) {
	return f.markets, f.err
}

func (f *fakeQuerier) QueryTokens(context.Context) ([]domain.Token, error) {
	return f.tokens, f.err
}

type memMarketStore struct{ markets map[uint64]domain.Market }

func (m *memMarketStore) Upsert(_ context.Context, market domain.Market) error {
	if m.markets == nil {
		m.markets = make(map[uint64]domain.Market)
	}
	m.markets[market.MarketID] = market
	return nil
}

func (m *memMarketStore) Get(_ context.Context, id uint64) (domain.Market, error) {
	market, ok := m.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrMarketNotFound
	}
	return market, nil
}

func (m *memMarketStore) List(_ context.Context) ([]domain.Market, error) {
	out := make([]domain.Market, 0, len(m.markets))
	for _, market := range m.markets {
		out = append(out, market)
	}
	return out, nil
}

func TestRefreshWritesThroughCacheAndStore(t *testing.T) {
	querier := &fakeQuerier{
		markets: []domain.Market{
			{MarketID: 1, Status: domain.MarketStatusOpen, TokenA: 1, TokenB: 0, LastPrice: 42},
			{MarketID: 2, Status: domain.MarketStatusClosed},
		},
		tokens: []domain.Token{{Index: 0, Address: "0xfee"}},
	}
	store := &memMarketStore{}
	cache := &memMarketCache{}
	svc := NewMarketService(querier, store, cache, slog.New(slog.DiscardHandler))

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(store.markets) != 2 {
		t.Errorf("store has %d markets, want 2", len(store.markets))
	}
	got, err := cache.Get(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastPrice != 42 {
		t.Errorf("cached market = %+v", got)
	}
}

func TestRefreshPropagatesQueryError(t *testing.T) {
	querier := &fakeQuerier{err: errors.New("node down")}
	svc := NewMarketService(querier, &memMarketStore{}, &memMarketCache{}, slog.New(slog.DiscardHandler))

	if err := svc.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetMarketFallsBackToStore(t *testing.T) {
	store := &memMarketStore{}
	market := domain.Market{MarketID: 7, Status: domain.MarketStatusOpen, LastPrice: 9}
	if err := store.Upsert(context.Background(), market); err != nil {
		t.Fatal(err)
	}
	cache := &memMarketCache{}
	svc := NewMarketService(&fakeQuerier{}, store, cache, slog.New(slog.DiscardHandler))

	got, err := svc.GetMarket(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if got != market {
		t.Errorf("got %+v, want %+v", got, market)
	}

	// The store hit back-fills the cache.
	if _, err := cache.Get(context.Background(), 7); err != nil {
		t.Errorf("cache not back-filled: %v", err)
	}
}

func TestGetMarketMissIsNotFound(t *testing.T) {
	svc := NewMarketService(&fakeQuerier{}, &memMarketStore{}, &memMarketCache{}, slog.New(slog.DiscardHandler))

	_, err := svc.GetMarket(context.Background(), 99)
	if !errors.Is(err, domain.ErrMarketNotFound) {
		t.Errorf("err = %v, want ErrMarketNotFound", err)
	}
}

func TestListMarketsPrefersCache(t *testing.T) {
	cache := &memMarketCache{}
	if err := cache.SetAll(context.Background(), []domain.Market{{MarketID: 1}}); err != nil {
		t.Fatal(err)
	}
	store := &memMarketStore{}
	if err := store.Upsert(context.Background(), domain.Market{MarketID: 2}); err != nil {
		t.Fatal(err)
	}
	svc := NewMarketService(&fakeQuerier{}, store, cache, slog.New(slog.DiscardHandler))

	markets, err := svc.ListMarkets(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(markets) != 1 || markets[0].MarketID != 1 {
		t.Errorf("markets = %+v, want cached listing", markets)
	}
}
