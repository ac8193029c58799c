package domain

import "time"

// Trade is one settled match as recorded by the ledger. The A side is always
// the buy order and the B side the sell order.
type Trade struct {
	TradeID       uint64
	AOrderID      uint64
	BOrderID      uint64
	AActualAmount uint64
	BActualAmount uint64
}

// TradeRecord is a locally mirrored trade with submission metadata, kept in
// Postgres for operator queries and archival. SubmissionID is a client-side
// UUID tying the record back to the order placement that produced it.
type TradeRecord struct {
	Trade
	MarketID     uint64
	SubmissionID string
	SettledAt    time.Time
}

// OrderRecord is a locally mirrored order with submission metadata.
type OrderRecord struct {
	Order
	SubmissionID string
	PlacedAt     time.Time
}
