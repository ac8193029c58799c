package domain

// Position is one per-token balance entry in a player's account. Balance is
// the free amount; LockedBalance is escrowed against live orders.
type Position struct {
	Balance       uint64
	LockedBalance uint64
}

// PlayerState is the per-account part of a ledger state query.
type PlayerState struct {
	Nonce     uint64
	Counter   uint64
	Positions map[uint32]Position
}

// Position returns the position for a token index, zero-valued if the
// account has never touched that token.
func (p PlayerState) Position(tokenIndex uint32) Position {
	return p.Positions[tokenIndex]
}

// GlobalState is the exchange-wide part of a ledger state query.
type GlobalState struct {
	Counter        uint64
	TotalFee       uint64
	MarketCounter  uint64
	OrderCounter   uint64
	TradeCounter   uint64
	EventCounter   uint64
	Orders         []Order
	Trades         []Trade
}

// StateSnapshot bundles the player and global views returned by one state
// query. The invariant checker compares two of these taken around an order
// submission.
type StateSnapshot struct {
	Player PlayerState
	State  GlobalState
}

// LatestOrder returns the most recently created order in the snapshot, or
// false if the book is empty. The ledger appends orders in id order, so the
// last element is the order the preceding transaction created.
func (s StateSnapshot) LatestOrder() (Order, bool) {
	if len(s.State.Orders) == 0 {
		return Order{}, false
	}
	return s.State.Orders[len(s.State.Orders)-1], true
}
