package match

import (
	"log/slog"
	"testing"

	"github.com/zkxchange/rollexbot/internal/domain"
)

func testChecker() *Checker {
	return NewChecker(slog.New(slog.DiscardHandler))
}

func eligiblePair() ([]domain.Order, []domain.Market) {
	orders := []domain.Order{
		{
			ID: 1, MarketID: 1, Side: domain.SideBuy, Kind: domain.KindLimit,
			Status: domain.StatusLive, Owner: ownerA, LockedBalance: 100,
		},
		{
			ID: 2, MarketID: 1, Side: domain.SideSell, Kind: domain.KindLimit,
			Status: domain.StatusLive, Owner: ownerB, LockedBalance: 100,
		},
	}
	return orders, testMarkets()
}

func TestEligiblePasses(t *testing.T) {
	orders, markets := eligiblePair()
	if !testChecker().Eligible(orders, markets, 1, 2, 100, 100) {
		t.Fatal("well-formed pair must be eligible")
	}
}

func TestEligibleRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(orders []domain.Order, markets []domain.Market) ([]domain.Order, []domain.Market)
		aID    uint64
		bID    uint64
	}{
		{
			name: "buy order missing",
			mutate: func(o []domain.Order, m []domain.Market) ([]domain.Order, []domain.Market) {
				return o, m
			},
			aID: 99, bID: 2,
		},
		{
			name: "sell order missing",
			mutate: func(o []domain.Order, m []domain.Market) ([]domain.Order, []domain.Market) {
				return o, m
			},
			aID: 1, bID: 99,
		},
		{
			name: "market closed",
			mutate: func(o []domain.Order, m []domain.Market) ([]domain.Order, []domain.Market) {
				m[0].Status = domain.MarketStatusClosed
				return o, m
			},
			aID: 1, bID: 2,
		},
		{
			name: "market unknown",
			mutate: func(o []domain.Order, m []domain.Market) ([]domain.Order, []domain.Market) {
				return o, nil
			},
			aID: 1, bID: 2,
		},
		{
			name: "same owner",
			mutate: func(o []domain.Order, m []domain.Market) ([]domain.Order, []domain.Market) {
				o[1].Owner = ownerA
				return o, m
			},
			aID: 1, bID: 2,
		},
		{
			name: "buy order not live",
			mutate: func(o []domain.Order, m []domain.Market) ([]domain.Order, []domain.Market) {
				o[0].Status = domain.StatusCancelled
				return o, m
			},
			aID: 1, bID: 2,
		},
		{
			name: "sell order not live",
			mutate: func(o []domain.Order, m []domain.Market) ([]domain.Order, []domain.Market) {
				o[1].Status = domain.StatusMatched
				return o, m
			},
			aID: 1, bID: 2,
		},
		{
			name: "different markets",
			mutate: func(o []domain.Order, m []domain.Market) ([]domain.Order, []domain.Market) {
				o[1].MarketID = 2
				return o, m
			},
			aID: 1, bID: 2,
		},
		{
			name: "sides swapped",
			mutate: func(o []domain.Order, m []domain.Market) ([]domain.Order, []domain.Market) {
				return o, m
			},
			aID: 2, bID: 1,
		},
		{
			name: "both market kind",
			mutate: func(o []domain.Order, m []domain.Market) ([]domain.Order, []domain.Market) {
				o[0].Kind = domain.KindMarket
				o[1].Kind = domain.KindMarket
				return o, m
			},
			aID: 1, bID: 2,
		},
		{
			name: "buy locked balance short",
			mutate: func(o []domain.Order, m []domain.Market) ([]domain.Order, []domain.Market) {
				o[0].LockedBalance = 99
				return o, m
			},
			aID: 1, bID: 2,
		},
		{
			name: "sell locked balance short",
			mutate: func(o []domain.Order, m []domain.Market) ([]domain.Order, []domain.Market) {
				o[1].LockedBalance = 99
				return o, m
			},
			aID: 1, bID: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, markets := eligiblePair()
			orders, markets = tt.mutate(orders, markets)
			if testChecker().Eligible(orders, markets, tt.aID, tt.bID, 100, 100) {
				t.Fatal("pairing must be rejected")
			}
		})
	}
}
