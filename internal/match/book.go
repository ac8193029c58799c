package match

import (
	"sort"

	"github.com/zkxchange/rollexbot/internal/domain"
)

// AuthoritativeAmount returns the one quantity field that binds the order's
// size. Limit orders always size in B-token units. Market orders size in
// whichever field the placer populated: the A-token amount when nonzero, the
// B-token amount otherwise (the ledger stores zero in the field that was not
// given).
func AuthoritativeAmount(o domain.Order) uint64 {
	if o.Kind == domain.KindLimit {
		return o.QuantityB
	}
	if o.QuantityA != 0 {
		return o.QuantityA
	}
	return o.QuantityB
}

// Candidates projects the opposite side of the incoming order's market out
// of a full order snapshot, sorted by matching priority: best price for the
// incoming order first (sells ascending for a buy, buys descending for a
// sell), ties broken by ascending order id so the oldest order at a price
// matches first.
func Candidates(orders []domain.Order, incoming domain.Order) []domain.Order {
	want := domain.SideSell
	if incoming.Side == domain.SideSell {
		want = domain.SideBuy
	}

	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.Side != want || o.MarketID != incoming.MarketID {
			continue
		}
		out = append(out, o)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			if want == domain.SideSell {
				return out[i].Price < out[j].Price
			}
			return out[i].Price > out[j].Price
		}
		return out[i].ID < out[j].ID
	})
	return out
}
