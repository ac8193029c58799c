package rollup

// Op identifies a ledger transaction type.
type Op uint64

const (
	OpAddToken       Op = 1
	OpAddMarket      Op = 2
	OpDeposit        Op = 3
	OpAddLimitOrder  Op = 5
	OpAddMarketOrder Op = 6
	OpCancelOrder    Op = 7
	OpCloseMarket    Op = 8
	OpTransfer       Op = 9
	OpWithdraw       Op = 10
	OpAddTrade       Op = 11
	OpUpdateToken    Op = 12
)

// EncodeCommand packs a transaction into the ledger's command word layout:
// the first word carries the player nonce in the high 48 bits, the
// parameter count in bits 8..15, and the op code in the low byte; the
// parameters follow verbatim.
func EncodeCommand(nonce uint64, op Op, params []uint64) []uint64 {
	cmd := make([]uint64, 0, 1+len(params))
	cmd = append(cmd, nonce<<16|uint64(len(params))<<8|uint64(op))
	return append(cmd, params...)
}
