package rollup

import (
	"fmt"
	"strconv"

	"github.com/zkxchange/rollexbot/internal/domain"
)

// Wire types mirror the ledger's JSON state encoding. Field names are the
// ledger's, not ours; conversion to domain types happens at this boundary
// so nothing above it sees snake_case or stringly-typed numbers.

// APIOrder is one order in a state query response.
type APIOrder struct {
	ID           uint64    `json:"id"`
	Type         uint8     `json:"type_"`
	Status       uint8     `json:"status"`
	PID          [2]uint64 `json:"pid"`
	MarketID     uint64    `json:"market_id"`
	Flag         uint8     `json:"flag"`
	LockBalance  uint64    `json:"lock_balance"`
	LockFee      uint64    `json:"lock_fee"`
	Price        uint64    `json:"price"`
	BTokenAmount uint64    `json:"b_token_amount"`
	ATokenAmount uint64    `json:"a_token_amount"`
	AlreadyDeal  uint64    `json:"already_deal_amount"`
}

// ToDomain converts the wire order to the domain representation.
func (o APIOrder) ToDomain() domain.Order {
	return domain.Order{
		ID:            o.ID,
		MarketID:      o.MarketID,
		Side:          domain.Side(o.Flag),
		Kind:          domain.Kind(o.Type),
		Status:        domain.Status(o.Status),
		Owner:         domain.PlayerID(o.PID),
		Price:         o.Price,
		QuantityB:     o.BTokenAmount,
		QuantityA:     o.ATokenAmount,
		LockedBalance: o.LockBalance,
		LockedFee:     o.LockFee,
		FilledAmount:  o.AlreadyDeal,
	}
}

// APITrade is one trade in a state query response.
type APITrade struct {
	TradeID       uint64 `json:"trade_id"`
	AOrderID      uint64 `json:"a_order_id"`
	BOrderID      uint64 `json:"b_order_id"`
	AActualAmount uint64 `json:"a_actual_amount"`
	BActualAmount uint64 `json:"b_actual_amount"`
}

// ToDomain converts the wire trade to the domain representation.
func (t APITrade) ToDomain() domain.Trade {
	return domain.Trade{
		TradeID:       t.TradeID,
		AOrderID:      t.AOrderID,
		BOrderID:      t.BOrderID,
		AActualAmount: t.AActualAmount,
		BActualAmount: t.BActualAmount,
	}
}

// APIPosition is one per-token balance entry.
type APIPosition struct {
	Balance     uint64 `json:"balance"`
	LockBalance uint64 `json:"lock_balance"`
}

// APIPlayer is the per-account part of a state query response. Position map
// keys are token indices encoded as strings.
type APIPlayer struct {
	Nonce uint64 `json:"nonce"`
	Data  struct {
		Counter   uint64                 `json:"counter"`
		Positions map[string]APIPosition `json:"positions"`
	} `json:"data"`
}

// APIGlobalState is the exchange-wide part of a state query response.
type APIGlobalState struct {
	Counter         uint64     `json:"counter"`
	TotalFee        uint64     `json:"total_fee"`
	MarketIDCounter uint64     `json:"market_id_counter"`
	OrderIDCounter  uint64     `json:"order_id_counter"`
	TradeIDCounter  uint64     `json:"trade_id_counter"`
	EventIDCounter  uint64     `json:"event_id_counter"`
	Orders          []APIOrder `json:"orders"`
	Trades          []APITrade `json:"trades"`
}

// APIStateResponse is the full payload of a state query or a fulfilled
// transaction submission.
type APIStateResponse struct {
	Player APIPlayer      `json:"player"`
	State  APIGlobalState `json:"state"`
}

// ToDomain converts a full state response to a domain snapshot.
func (r APIStateResponse) ToDomain() (domain.StateSnapshot, error) {
	positions := make(map[uint32]domain.Position, len(r.Player.Data.Positions))
	for key, p := range r.Player.Data.Positions {
		idx, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return domain.StateSnapshot{}, fmt.Errorf("rollup: bad position token index %q: %w", key, err)
		}
		positions[uint32(idx)] = domain.Position{
			Balance:       p.Balance,
			LockedBalance: p.LockBalance,
		}
	}

	orders := make([]domain.Order, 0, len(r.State.Orders))
	for _, o := range r.State.Orders {
		orders = append(orders, o.ToDomain())
	}
	trades := make([]domain.Trade, 0, len(r.State.Trades))
	for _, t := range r.State.Trades {
		trades = append(trades, t.ToDomain())
	}

	return domain.StateSnapshot{
		Player: domain.PlayerState{
			Nonce:     r.Player.Nonce,
			Counter:   r.Player.Data.Counter,
			Positions: positions,
		},
		State: domain.GlobalState{
			Counter:       r.State.Counter,
			TotalFee:      r.State.TotalFee,
			MarketCounter: r.State.MarketIDCounter,
			OrderCounter:  r.State.OrderIDCounter,
			TradeCounter:  r.State.TradeIDCounter,
			EventCounter:  r.State.EventIDCounter,
			Orders:        orders,
			Trades:        trades,
		},
	}, nil
}

// APIMarket is one entry in the market listing endpoint. LastPrice is a
// string on the wire to survive JSON number precision limits.
type APIMarket struct {
	MarketID  uint64 `json:"marketId"`
	Status    uint8  `json:"status"`
	TokenA    uint32 `json:"tokenA"`
	TokenB    uint32 `json:"tokenB"`
	LastPrice string `json:"lastPrice"`
}

// ToDomain converts the wire market to the domain representation.
func (m APIMarket) ToDomain() (domain.Market, error) {
	last := uint64(0)
	if m.LastPrice != "" {
		v, err := strconv.ParseUint(m.LastPrice, 10, 64)
		if err != nil {
			return domain.Market{}, fmt.Errorf("rollup: bad lastPrice %q for market %d: %w", m.LastPrice, m.MarketID, err)
		}
		last = v
	}
	return domain.Market{
		MarketID:  m.MarketID,
		Status:    domain.MarketStatus(m.Status),
		TokenA:    m.TokenA,
		TokenB:    m.TokenB,
		LastPrice: last,
	}, nil
}

// APIConfig is the deployment parameter payload of the config endpoint.
type APIConfig struct {
	Precision     uint64 `json:"precision"`
	Fee           uint64 `json:"fee"`
	FeeTokenIndex uint32 `json:"fee_token_index"`
}

// ToDomain converts the wire config to the domain representation.
func (c APIConfig) ToDomain() domain.LedgerConfig {
	return domain.LedgerConfig{
		Precision:     c.Precision,
		Fee:           c.Fee,
		FeeTokenIndex: c.FeeTokenIndex,
	}
}

// APIToken is one entry in the token listing endpoint.
type APIToken struct {
	TokenIdx uint32 `json:"tokenIdx"`
	Address  string `json:"address"`
}

// ToDomain converts the wire token to the domain representation.
func (t APIToken) ToDomain() domain.Token {
	return domain.Token{Index: t.TokenIdx, Address: t.Address}
}
