// Package match implements the client-side order matching core: candidate
// selection from a book snapshot, trade parameter derivation, pre-submission
// eligibility checks, and post-submission bookkeeping validation.
//
// Everything in this package is pure: functions operate on state snapshots
// the caller already fetched and never touch the network. The ledger stays
// authoritative; a pairing accepted here can still be rejected when the
// settlement transaction is applied.
package match

// Params carries the exchange constants the matching core depends on. The
// values must agree with the deployed ledger; they are threaded in from
// configuration so tests can vary them without shared globals.
type Params struct {
	// Precision is the fixed-point scale applied to prices (price * 1e9).
	Precision uint64

	// Fee is the flat per-order fee the ledger escrows, denominated in the
	// fee token.
	Fee uint64

	// FeeTokenIndex is the token table index fees are charged in.
	FeeTokenIndex uint32
}

// DefaultParams returns the constants of the current ledger deployment.
func DefaultParams() Params {
	return Params{
		Precision:     1_000_000_000,
		Fee:           3,
		FeeTokenIndex: 0,
	}
}
