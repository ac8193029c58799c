package match

import (
	"log/slog"
	"math/big"

	"github.com/zkxchange/rollexbot/internal/domain"
)

// Proposal holds the parameters of an add-trade transaction for a matched
// pair. The A slot is always the buy order and the B slot the sell order,
// mirroring the ledger's add-trade parameter order.
type Proposal struct {
	AOrderID      uint64
	BOrderID      uint64
	AActualAmount uint64
	BActualAmount uint64
}

// Matcher pairs an incoming order against a book snapshot and derives the
// trade amounts a settlement transaction must carry.
type Matcher struct {
	params  Params
	checker *Checker
	logger  *slog.Logger
}

// NewMatcher creates a Matcher using the given exchange params and
// eligibility checker.
func NewMatcher(params Params, checker *Checker, logger *slog.Logger) *Matcher {
	return &Matcher{
		params:  params,
		checker: checker,
		logger:  logger.With(slog.String("component", "matcher")),
	}
}

// Match scans the opposite side of the book in priority order and returns
// the parameters for the first eligible pairing. A false result means no
// candidate qualified; the incoming order simply rests on the book and the
// caller submits nothing. Disqualified candidates (price cross mismatch,
// overflow, eligibility failure) are skipped silently, never surfaced as
// errors. At most one proposal is produced per call.
func (m *Matcher) Match(orders []domain.Order, markets []domain.Market, incoming domain.Order) (Proposal, bool) {
	for _, cand := range Candidates(orders, incoming) {
		price, ok := resolvePrice(incoming, cand)
		if !ok {
			m.logger.Debug("limit prices do not cross",
				slog.Uint64("incoming", incoming.ID),
				slog.Uint64("candidate", cand.ID),
			)
			continue
		}

		buy, sell := incoming, cand
		if incoming.Side == domain.SideSell {
			buy, sell = cand, incoming
		}
		aActual := AuthoritativeAmount(buy)
		bActual := AuthoritativeAmount(sell)

		// The buy side must receive exactly what the sell side gives up at
		// the resolved price. Rounding slack would let value leak, so the
		// cross amount has to equal the buy amount to the integer.
		cross := CrossAmount(price, bActual, m.params.Precision)
		if ExceedsCeiling(cross) {
			m.logger.Debug("cross amount overflows 63-bit ceiling",
				slog.Uint64("price", price),
				slog.Uint64("b_amount", bActual),
			)
			continue
		}
		if cross.Cmp(new(big.Int).SetUint64(aActual)) != 0 {
			m.logger.Debug("cross amount does not equal buy amount",
				slog.String("cross", cross.String()),
				slog.Uint64("a_amount", aActual),
			)
			continue
		}

		if !m.checker.Eligible(orders, markets, buy.ID, sell.ID, aActual, bActual) {
			continue
		}

		return Proposal{
			AOrderID:      buy.ID,
			BOrderID:      sell.ID,
			AActualAmount: aActual,
			BActualAmount: bActual,
		}, true
	}
	return Proposal{}, false
}

// resolvePrice picks the settlement price for a pairing.
//
// Limit vs limit requires the buy price strictly above the sell price and
// settles at the sell order's limit price in both match directions. The
// sell-side bias looks accidental but is what the deployed ledger verifies
// against; changing it (e.g. to a midpoint) would make every settlement this
// client submits fail. Limit vs market settles at the limit side's price.
// Market vs market settles at the candidate's stated price; the pairing is
// only reachable when a market order carries a leftover nonzero price and
// the eligibility check rejects it anyway.
func resolvePrice(incoming, cand domain.Order) (uint64, bool) {
	if incoming.Kind == domain.KindLimit && cand.Kind == domain.KindLimit {
		buyPrice, sellPrice := incoming.Price, cand.Price
		if incoming.Side == domain.SideSell {
			buyPrice, sellPrice = cand.Price, incoming.Price
		}
		if buyPrice <= sellPrice {
			return 0, false
		}
		return sellPrice, true
	}
	if incoming.Kind == domain.KindLimit {
		return incoming.Price, true
	}
	if cand.Kind == domain.KindLimit {
		return cand.Price, true
	}
	return cand.Price, true
}
