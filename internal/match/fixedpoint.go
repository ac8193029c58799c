package match

import "math/big"

// maxSettleAmount is the largest amount the ledger can represent, 2^63 - 1.
var maxSettleAmount = new(big.Int).SetUint64(1<<63 - 1)

// CrossAmount converts a counter-side amount into the incoming side's units
// at the given price: floor(price * counterAmount / precision). The product
// of two u64 values does not fit in 64 bits, so the unreduced intermediate
// is held in a big.Int.
func CrossAmount(price, counterAmount, precision uint64) *big.Int {
	prod := new(big.Int).Mul(
		new(big.Int).SetUint64(price),
		new(big.Int).SetUint64(counterAmount),
	)
	return prod.Quo(prod, new(big.Int).SetUint64(precision))
}

// ExceedsCeiling reports whether x is too large for the ledger's signed
// 64-bit amount representation.
func ExceedsCeiling(x *big.Int) bool {
	return x.Cmp(maxSettleAmount) > 0
}
