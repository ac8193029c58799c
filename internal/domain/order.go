package domain

// Side indicates whether an order buys or sells the market's A token.
// The ledger encodes this as the order "flag" word: 0 = sell, 1 = buy.
type Side uint8

const (
	SideSell Side = 0
	SideBuy  Side = 1
)

// String returns "buy" or "sell" for logging.
func (s Side) String() string {
	if s == SideBuy {
		return "buy"
	}
	return "sell"
}

// Kind distinguishes limit orders from market orders.
type Kind uint8

const (
	KindLimit  Kind = 0
	KindMarket Kind = 1
)

// String returns "limit" or "market" for logging.
func (k Kind) String() string {
	if k == KindMarket {
		return "market"
	}
	return "limit"
}

// Status tracks the order lifecycle as recorded by the ledger. The client
// only ever reads it; the authoritative transition function lives on-chain.
type Status uint8

const (
	StatusLive               Status = 0
	StatusMatched            Status = 1
	StatusPartiallyMatched   Status = 2
	StatusPartiallyCancelled Status = 3
	StatusCancelled          Status = 4
)

// PlayerID is the two-limb account identifier the ledger derives from a
// player's public key.
type PlayerID [2]uint64

// Equal reports whether two player ids refer to the same account.
func (p PlayerID) Equal(other PlayerID) bool {
	return p[0] == other[0] && p[1] == other[1]
}

// Order is a resting or incoming order as reported by the ledger state
// query. Orders are immutable from the client's point of view; lifecycle
// fields (Status, FilledAmount) are updated only by the ledger.
//
// QuantityB and QuantityA are the B-side and A-side amounts. Which of the
// two is the order's binding size depends on its kind: see
// match.AuthoritativeAmount.
type Order struct {
	ID       uint64
	MarketID uint64
	Side     Side
	Kind     Kind
	Status   Status
	Owner    PlayerID

	// Price is the limit price scaled by the precision constant (1e9).
	// Meaningful for limit orders only.
	Price uint64

	QuantityB uint64
	QuantityA uint64

	// LockedBalance and LockedFee are the amounts the ledger escrowed when
	// the order was placed.
	LockedBalance uint64
	LockedFee     uint64

	// FilledAmount is the cumulative amount already settled against this
	// order.
	FilledAmount uint64
}

// Live reports whether the order is still open for matching.
func (o Order) Live() bool {
	return o.Status == StatusLive
}
