package match

import (
	"errors"
	"testing"

	"github.com/zkxchange/rollexbot/internal/domain"
)

func snapshot(orderCounter uint64, positions map[uint32]domain.Position) domain.StateSnapshot {
	return domain.StateSnapshot{
		Player: domain.PlayerState{Positions: positions},
		State:  domain.GlobalState{OrderCounter: orderCounter},
	}
}

func testInvariantChecker() *InvariantChecker {
	return NewInvariantChecker(Params{Precision: 1_000_000_000, Fee: 3, FeeTokenIndex: 0})
}

func TestCheckOrderPlacementFeeTokenBuy(t *testing.T) {
	// Buy on a market whose A token is the fee token: cost 100 and fee 3
	// move together as one 103 delta.
	before := snapshot(7, map[uint32]domain.Position{
		0: {Balance: 500, LockedBalance: 0},
	})
	after := snapshot(8, map[uint32]domain.Position{
		0: {Balance: 397, LockedBalance: 103},
	})
	market := domain.Market{MarketID: 1, TokenA: 0, TokenB: 1}

	if err := testInvariantChecker().CheckOrderPlacement(before, after, market, domain.SideBuy, 100); err != nil {
		t.Fatalf("expected clean check, got %v", err)
	}
}

func TestCheckOrderPlacementNonFeeTokenSell(t *testing.T) {
	// Sell paying in token 1: the traded token moves cost 50 and the fee
	// token independently moves fee 3.
	before := snapshot(7, map[uint32]domain.Position{
		0: {Balance: 500, LockedBalance: 0},
		1: {Balance: 200, LockedBalance: 0},
	})
	after := snapshot(8, map[uint32]domain.Position{
		0: {Balance: 497, LockedBalance: 3},
		1: {Balance: 150, LockedBalance: 50},
	})
	market := domain.Market{MarketID: 1, TokenA: 0, TokenB: 1}

	if err := testInvariantChecker().CheckOrderPlacement(before, after, market, domain.SideSell, 50); err != nil {
		t.Fatalf("expected clean check, got %v", err)
	}
}

func TestCheckOrderPlacementNoOpRoundTripRaises(t *testing.T) {
	// Counter advanced but no balance moved: a successful placement always
	// locks at least the fee, so this must be flagged.
	positions := map[uint32]domain.Position{
		0: {Balance: 500, LockedBalance: 0},
		1: {Balance: 200, LockedBalance: 0},
	}
	before := snapshot(7, positions)
	after := snapshot(8, positions)
	market := domain.Market{MarketID: 1, TokenA: 0, TokenB: 1}

	err := testInvariantChecker().CheckOrderPlacement(before, after, market, domain.SideBuy, 0)
	if err == nil {
		t.Fatal("no-op round trip must raise")
	}
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("want *Violation, got %T", err)
	}
}

func TestCheckOrderPlacementCounterMismatch(t *testing.T) {
	before := snapshot(7, map[uint32]domain.Position{0: {Balance: 500}})
	after := snapshot(9, map[uint32]domain.Position{0: {Balance: 397, LockedBalance: 103}})
	market := domain.Market{MarketID: 1, TokenA: 0, TokenB: 1}

	err := testInvariantChecker().CheckOrderPlacement(before, after, market, domain.SideBuy, 100)
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("want *Violation, got %v", err)
	}
	if v.Field != "order_counter" {
		t.Fatalf("violated field %q, want order_counter", v.Field)
	}
}

func TestCheckOrderPlacementReportsMismatchedField(t *testing.T) {
	// Fee lock moved but the fee balance did not: the violation must name
	// the balance side and carry both observed values.
	before := snapshot(7, map[uint32]domain.Position{
		0: {Balance: 500, LockedBalance: 0},
		1: {Balance: 200, LockedBalance: 0},
	})
	after := snapshot(8, map[uint32]domain.Position{
		0: {Balance: 500, LockedBalance: 3},
		1: {Balance: 150, LockedBalance: 50},
	})
	market := domain.Market{MarketID: 1, TokenA: 0, TokenB: 1}

	err := testInvariantChecker().CheckOrderPlacement(before, after, market, domain.SideSell, 50)
	var v *Violation
	if !errors.As(err, &v) {
		t.Fatalf("want *Violation, got %v", err)
	}
	if v.Field != "fee token balance" {
		t.Fatalf("violated field %q, want fee token balance", v.Field)
	}
	if v.Before != 500 || v.After != 500 || v.Want != 3 {
		t.Fatalf("violation values %+v", v)
	}
}

func TestCheckOrderPlacementVariedParams(t *testing.T) {
	// Fee token on a non-zero index, different fee: params are threaded,
	// not global.
	checker := NewInvariantChecker(Params{Precision: 1_000_000, Fee: 10, FeeTokenIndex: 2})
	before := snapshot(1, map[uint32]domain.Position{
		2: {Balance: 100, LockedBalance: 0},
		3: {Balance: 80, LockedBalance: 0},
	})
	after := snapshot(2, map[uint32]domain.Position{
		2: {Balance: 90, LockedBalance: 10},
		3: {Balance: 40, LockedBalance: 40},
	})
	market := domain.Market{MarketID: 1, TokenA: 3, TokenB: 2}

	if err := checker.CheckOrderPlacement(before, after, market, domain.SideBuy, 40); err != nil {
		t.Fatalf("expected clean check, got %v", err)
	}
}
