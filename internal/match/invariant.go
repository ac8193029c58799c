package match

import (
	"fmt"

	"github.com/zkxchange/rollexbot/internal/domain"
)

// Violation is a post-submission bookkeeping mismatch: the ledger's state
// delta across an order placement does not equal what the placement must
// have produced. It indicates a divergence between client and ledger logic
// (or a concurrent writer between the two snapshots); it cannot be used to
// roll anything back.
type Violation struct {
	Field  string
	Before uint64
	After  uint64
	Want   uint64 // expected delta
}

func (v *Violation) Error() string {
	return fmt.Sprintf("invariant violation: %s moved %d -> %d, want delta %d",
		v.Field, v.Before, v.After, v.Want)
}

// InvariantChecker validates the account-state deltas across an order
// submission round-trip.
type InvariantChecker struct {
	params Params
}

// NewInvariantChecker creates an InvariantChecker with the given exchange
// params.
func NewInvariantChecker(params Params) *InvariantChecker {
	return &InvariantChecker{params: params}
}

// CheckOrderPlacement compares the before/after snapshots of a successful
// order placement. The placement must have bumped the global order counter
// by exactly one, moved cost units of the traded token (the market's A token
// for a buy, B token for a sell) from balance to locked balance, and locked
// the flat fee in the fee token. When the traded token is the fee token
// itself, cost and fee move together as a single cost+fee delta.
//
// The two snapshots are not taken atomically, so a concurrent submission by
// another account can produce a false violation; callers surface the error
// to the operator rather than acting on it.
func (ic *InvariantChecker) CheckOrderPlacement(before, after domain.StateSnapshot, market domain.Market, side domain.Side, cost uint64) error {
	if after.State.OrderCounter != before.State.OrderCounter+1 {
		return &Violation{
			Field:  "order_counter",
			Before: before.State.OrderCounter,
			After:  after.State.OrderCounter,
			Want:   1,
		}
	}

	tokenIndex := market.TokenA
	if side == domain.SideSell {
		tokenIndex = market.TokenB
	}

	if tokenIndex == ic.params.FeeTokenIndex {
		// Cost and fee share one token; the ledger locks them in one move.
		return ic.checkPositionDelta(before, after, tokenIndex, cost+ic.params.Fee,
			fmt.Sprintf("token %d", tokenIndex))
	}

	if err := ic.checkPositionDelta(before, after, tokenIndex, cost,
		fmt.Sprintf("token %d", tokenIndex)); err != nil {
		return err
	}
	return ic.checkPositionDelta(before, after, ic.params.FeeTokenIndex, ic.params.Fee, "fee token")
}

// checkPositionDelta requires that for the given token, locked balance rose
// by exactly want and free balance fell by exactly want.
func (ic *InvariantChecker) checkPositionDelta(before, after domain.StateSnapshot, tokenIndex uint32, want uint64, label string) error {
	b := before.Player.Position(tokenIndex)
	a := after.Player.Position(tokenIndex)

	if a.LockedBalance != b.LockedBalance+want {
		return &Violation{
			Field:  label + " lock_balance",
			Before: b.LockedBalance,
			After:  a.LockedBalance,
			Want:   want,
		}
	}
	if b.Balance != a.Balance+want {
		return &Violation{
			Field:  label + " balance",
			Before: b.Balance,
			After:  a.Balance,
			Want:   want,
		}
	}
	return nil
}
