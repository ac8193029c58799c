package match

import (
	"log/slog"

	"github.com/zkxchange/rollexbot/internal/domain"
)

// Checker validates a candidate pairing before a settlement transaction is
// submitted. Every check mirrors one the ledger applies when the add-trade
// transaction lands; rejecting locally avoids burning a nonce on a doomed
// submission. The ledger remains the authority: passing here is no
// guarantee the settlement succeeds.
type Checker struct {
	logger *slog.Logger
}

// NewChecker creates a Checker.
func NewChecker(logger *slog.Logger) *Checker {
	return &Checker{logger: logger.With(slog.String("component", "eligibility"))}
}

// Eligible reports whether the (aOrderID buy, bOrderID sell) pairing can
// settle aAmount against bAmount. It returns false for any defect and never
// errors; a missing order or market is just an ineligible pairing.
func (c *Checker) Eligible(orders []domain.Order, markets []domain.Market, aOrderID, bOrderID, aAmount, bAmount uint64) bool {
	aOrder, okA := findOrder(orders, aOrderID)
	bOrder, okB := findOrder(orders, bOrderID)
	if !okA || !okB {
		c.logger.Debug("order not found",
			slog.Uint64("a_order", aOrderID),
			slog.Uint64("b_order", bOrderID),
		)
		return false
	}

	market, ok := findMarket(markets, aOrder.MarketID)
	if !ok || !market.Open() {
		c.logger.Debug("market closed or unknown", slog.Uint64("market", aOrder.MarketID))
		return false
	}

	if aOrder.Owner.Equal(bOrder.Owner) {
		c.logger.Debug("orders share an owner",
			slog.Uint64("a_order", aOrderID),
			slog.Uint64("b_order", bOrderID),
		)
		return false
	}

	if !aOrder.Live() || !bOrder.Live() {
		c.logger.Debug("order not live",
			slog.Any("a_status", aOrder.Status),
			slog.Any("b_status", bOrder.Status),
		)
		return false
	}

	if aOrder.MarketID != bOrder.MarketID {
		c.logger.Debug("orders in different markets",
			slog.Uint64("a_market", aOrder.MarketID),
			slog.Uint64("b_market", bOrder.MarketID),
		)
		return false
	}

	if aOrder.Side != domain.SideBuy || bOrder.Side != domain.SideSell {
		c.logger.Debug("sides do not line up: a must buy, b must sell")
		return false
	}

	if aOrder.Kind == domain.KindMarket && bOrder.Kind == domain.KindMarket {
		c.logger.Debug("both orders are market orders")
		return false
	}

	if aOrder.LockedBalance < aAmount || bOrder.LockedBalance < bAmount {
		c.logger.Debug("locked balance below settle amount",
			slog.Uint64("a_locked", aOrder.LockedBalance),
			slog.Uint64("a_amount", aAmount),
			slog.Uint64("b_locked", bOrder.LockedBalance),
			slog.Uint64("b_amount", bAmount),
		)
		return false
	}

	return true
}

func findOrder(orders []domain.Order, id uint64) (domain.Order, bool) {
	for _, o := range orders {
		if o.ID == id {
			return o, true
		}
	}
	return domain.Order{}, false
}

func findMarket(markets []domain.Market, id uint64) (domain.Market, bool) {
	for _, m := range markets {
		if m.MarketID == id {
			return m, true
		}
	}
	return domain.Market{}, false
}
