package domain

// MarketStatus is the ledger's market lifecycle flag.
type MarketStatus uint8

const (
	MarketStatusClosed MarketStatus = 0
	MarketStatusOpen   MarketStatus = 1
)

// Market is one trading pair on the exchange. TokenA and TokenB are indices
// into the ledger's token table; a buy order pays in TokenA, a sell order
// pays in TokenB.
type Market struct {
	MarketID  uint64
	Status    MarketStatus
	TokenA    uint32
	TokenB    uint32
	LastPrice uint64
}

// Open reports whether the market accepts new orders.
func (m Market) Open() bool {
	return m.Status == MarketStatusOpen
}

// Token is one entry in the ledger's token table. Index 0 is the fee token.
type Token struct {
	Index   uint32
	Address string
}

// LedgerConfig carries the deployment parameters the node reports. The
// client's configured matching constants must agree with these.
type LedgerConfig struct {
	Precision     uint64
	Fee           uint64
	FeeTokenIndex uint32
}
