package match

import (
	"testing"

	"github.com/zkxchange/rollexbot/internal/domain"
)

func TestAuthoritativeAmount(t *testing.T) {
	tests := []struct {
		name  string
		order domain.Order
		want  uint64
	}{
		{
			name:  "limit uses B amount",
			order: domain.Order{Kind: domain.KindLimit, QuantityB: 10, QuantityA: 99},
			want:  10,
		},
		{
			name:  "limit uses B amount even when zero",
			order: domain.Order{Kind: domain.KindLimit, QuantityB: 0, QuantityA: 99},
			want:  0,
		},
		{
			name:  "market prefers A amount",
			order: domain.Order{Kind: domain.KindMarket, QuantityA: 7, QuantityB: 3},
			want:  7,
		},
		{
			name:  "market falls back to B amount",
			order: domain.Order{Kind: domain.KindMarket, QuantityA: 0, QuantityB: 3},
			want:  3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AuthoritativeAmount(tt.order); got != tt.want {
				t.Fatalf("AuthoritativeAmount = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCandidatesBuyIncoming(t *testing.T) {
	orders := []domain.Order{
		{ID: 1, MarketID: 1, Side: domain.SideSell, Price: 12},
		{ID: 2, MarketID: 1, Side: domain.SideSell, Price: 10},
		{ID: 3, MarketID: 1, Side: domain.SideBuy, Price: 11},  // same side, excluded
		{ID: 4, MarketID: 2, Side: domain.SideSell, Price: 9},  // other market, excluded
		{ID: 5, MarketID: 1, Side: domain.SideSell, Price: 10}, // price tie with id 2
	}
	incoming := domain.Order{ID: 6, MarketID: 1, Side: domain.SideBuy}

	got := Candidates(orders, incoming)
	wantIDs := []uint64{2, 5, 1} // ascending price, id breaks the 10/10 tie
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d candidates, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("candidate[%d].ID = %d, want %d", i, got[i].ID, id)
		}
	}
}

func TestCandidatesSellIncoming(t *testing.T) {
	orders := []domain.Order{
		{ID: 1, MarketID: 1, Side: domain.SideBuy, Price: 10},
		{ID: 2, MarketID: 1, Side: domain.SideBuy, Price: 12},
		{ID: 3, MarketID: 1, Side: domain.SideBuy, Price: 12}, // tie with id 2
		{ID: 4, MarketID: 1, Side: domain.SideSell, Price: 11},
	}
	incoming := domain.Order{ID: 5, MarketID: 1, Side: domain.SideSell}

	got := Candidates(orders, incoming)
	wantIDs := []uint64{2, 3, 1} // descending price, id breaks the 12/12 tie
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d candidates, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Fatalf("candidate[%d].ID = %d, want %d", i, got[i].ID, id)
		}
	}
}
