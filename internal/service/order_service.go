package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zkxchange/rollexbot/internal/crypto"
	"github.com/zkxchange/rollexbot/internal/domain"
	"github.com/zkxchange/rollexbot/internal/match"
	"github.com/zkxchange/rollexbot/internal/notify"
	"github.com/zkxchange/rollexbot/internal/platform/rollup"
)

// LedgerClient abstracts the rollup RPC calls the order lifecycle needs, so
// tests can run against a fake ledger.
type LedgerClient interface {
	SendTransaction(ctx context.Context, cmd []uint64, signer *crypto.Signer) (domain.StateSnapshot, error)
	QueryState(ctx context.Context, signer *crypto.Signer) (domain.StateSnapshot, error)
}

// PlacementResult reports the outcome of one order placement round-trip.
type PlacementResult struct {
	SubmissionID string
	Order        domain.Order
	// Trade is non-nil when the placement matched a resting order and the
	// settlement transaction was accepted.
	Trade *domain.Trade
}

// OrderService drives the two-phase order protocol: submit the order under
// the player key, verify the ledger's bookkeeping across the submission,
// then match the new order locally and settle the pairing under the admin
// key. The two phases are not atomic; a lost settlement leaves the order
// resting, which is safe.
type OrderService struct {
	client      LedgerClient
	signer      *crypto.Signer
	adminSigner *crypto.Signer
	matcher     *match.Matcher
	invariants  *match.InvariantChecker
	params      match.Params
	orders      domain.OrderStore
	trades      domain.TradeStore
	markets     domain.MarketCache
	limiter     domain.RateLimiter
	notifier    *notify.Notifier
	logger      *slog.Logger
}

// NewOrderService creates an OrderService with all required dependencies.
func NewOrderService(
	client LedgerClient,
	signer *crypto.Signer,
	matcher *match.Matcher,
	invariants *match.InvariantChecker,
	params match.Params,
	orders domain.OrderStore,
	trades domain.TradeStore,
	markets domain.MarketCache,
	limiter domain.RateLimiter,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		client:     client,
		signer:     signer,
		matcher:    matcher,
		invariants: invariants,
		params:     params,
		orders:     orders,
		trades:     trades,
		markets:    markets,
		limiter:    limiter,
		notifier:   notifier,
		logger:     logger.With(slog.String("component", "order_service")),
	}
}

// WithAdminSigner attaches the settlement key. Without it, placements still
// work but matched pairs are left for the operator deployment to settle.
func (s *OrderService) WithAdminSigner(admin *crypto.Signer) *OrderService {
	s.adminSigner = admin
	return s
}

// PlaceLimitOrder submits a limit order for amount units at the given
// fixed-point price and runs the full placement round-trip.
func (s *OrderService) PlaceLimitOrder(ctx context.Context, marketID uint64, side domain.Side, price, amount uint64) (PlacementResult, error) {
	market, err := s.lookupMarket(ctx, marketID)
	if err != nil {
		return PlacementResult{}, err
	}

	cost, err := limitOrderCost(side, price, amount, s.params.Precision)
	if err != nil {
		return PlacementResult{}, err
	}

	params := []uint64{marketID, uint64(side), price, amount}
	return s.placeOrder(ctx, market, side, rollup.OpAddLimitOrder, params, cost)
}

// PlaceMarketOrder submits a market order. Exactly one of quantityA (buy
// side, units of the market's A token) and quantityB (sell side, units of
// the B token) should be nonzero; the other is derived by the ledger at
// settlement time.
func (s *OrderService) PlaceMarketOrder(ctx context.Context, marketID uint64, side domain.Side, quantityB, quantityA uint64) (PlacementResult, error) {
	market, err := s.lookupMarket(ctx, marketID)
	if err != nil {
		return PlacementResult{}, err
	}

	cost, err := marketOrderCost(market, side, quantityB, quantityA, s.params.Precision)
	if err != nil {
		return PlacementResult{}, err
	}

	params := []uint64{marketID, uint64(side), quantityB, quantityA}
	return s.placeOrder(ctx, market, side, rollup.OpAddMarketOrder, params, cost)
}

// placeOrder runs the shared placement pipeline: rate limit, funds
// prechecks, before-snapshot, submission, invariant check, local mirror,
// then the match and settle leg.
func (s *OrderService) placeOrder(ctx context.Context, market domain.Market, side domain.Side, op rollup.Op, params []uint64, cost uint64) (PlacementResult, error) {
	allowed, err := s.limiter.Allow(ctx, "orders:"+s.signer.Address().Hex(), 10, time.Second)
	if err != nil {
		return PlacementResult{}, fmt.Errorf("order_service: rate limiter: %w", err)
	}
	if !allowed {
		return PlacementResult{}, domain.ErrRateLimited
	}

	before, err := s.client.QueryState(ctx, s.signer)
	if err != nil {
		return PlacementResult{}, fmt.Errorf("order_service: query state: %w", err)
	}

	tokenIndex := market.TokenA
	if side == domain.SideSell {
		tokenIndex = market.TokenB
	}
	if err := s.precheckFunds(before, tokenIndex, cost); err != nil {
		return PlacementResult{}, err
	}

	cmd := rollup.EncodeCommand(before.Player.Nonce, op, params)
	after, err := s.client.SendTransaction(ctx, cmd, s.signer)
	if err != nil {
		return PlacementResult{}, fmt.Errorf("order_service: submit order: %w", err)
	}

	placed, ok := after.LatestOrder()
	if !ok {
		return PlacementResult{}, fmt.Errorf("order_service: ledger accepted order but returned an empty book")
	}

	submissionID := uuid.NewString()
	result := PlacementResult{SubmissionID: submissionID, Order: placed}

	if err := s.invariants.CheckOrderPlacement(before, after, market, side, cost); err != nil {
		var v *match.Violation
		if errors.As(err, &v) {
			s.logger.ErrorContext(ctx, "order_service: bookkeeping mismatch after placement",
				slog.Uint64("order_id", placed.ID),
				slog.String("field", v.Field),
				slog.String("error", v.Error()),
			)
			_ = s.notifier.Notify(ctx, notify.EventInvariantViolation, "Invariant violation",
				fmt.Sprintf("order %d on market %d: %v", placed.ID, market.MarketID, v))
		}
		// The order is on the book regardless; surface the mismatch without
		// attempting the settlement leg.
		return result, fmt.Errorf("order_service: placement verification: %w", err)
	}

	if err := s.orders.Insert(ctx, domain.OrderRecord{
		Order:        placed,
		SubmissionID: submissionID,
		PlacedAt:     time.Now().UTC(),
	}); err != nil {
		s.logger.WarnContext(ctx, "order_service: mirror order failed",
			slog.Uint64("order_id", placed.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order_service: order placed",
		slog.Uint64("order_id", placed.ID),
		slog.Uint64("market_id", market.MarketID),
		slog.Uint64("cost", cost),
		slog.String("submission_id", submissionID),
	)
	_ = s.notifier.Notify(ctx, notify.EventOrderPlaced, "Order placed",
		fmt.Sprintf("order %d on market %d, cost %d", placed.ID, market.MarketID, cost))

	trade, err := s.matchAndSettle(ctx, after, placed, submissionID)
	if err != nil {
		return result, err
	}
	result.Trade = trade
	return result, nil
}

// matchAndSettle pairs the freshly placed order against the returned book
// and, when a proposal qualifies and a settlement key is configured, submits
// the add-trade transaction. No proposal is a normal outcome.
func (s *OrderService) matchAndSettle(ctx context.Context, snap domain.StateSnapshot, placed domain.Order, submissionID string) (*domain.Trade, error) {
	markets, err := s.markets.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("order_service: list markets for matching: %w", err)
	}

	proposal, ok := s.matcher.Match(snap.State.Orders, markets, placed)
	if !ok {
		s.logger.DebugContext(ctx, "order_service: no match, order rests",
			slog.Uint64("order_id", placed.ID),
		)
		return nil, nil
	}

	if s.adminSigner == nil {
		s.logger.InfoContext(ctx, "order_service: match found but no settlement key configured",
			slog.Uint64("a_order_id", proposal.AOrderID),
			slog.Uint64("b_order_id", proposal.BOrderID),
		)
		return nil, nil
	}

	return s.settle(ctx, proposal, placed.MarketID, submissionID)
}

// SweepBook scans the resting book for a crossing pair and settles the first
// one found, newest order first. This is the operator deployment's job: it
// holds the settlement key and picks up pairs that player deployments could
// not settle themselves. A calm book returns (nil, nil).
func (s *OrderService) SweepBook(ctx context.Context) (*domain.Trade, error) {
	if s.adminSigner == nil {
		return nil, fmt.Errorf("order_service: sweep requires a settlement key")
	}

	snap, err := s.client.QueryState(ctx, s.adminSigner)
	if err != nil {
		return nil, fmt.Errorf("order_service: query state for sweep: %w", err)
	}
	markets, err := s.markets.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("order_service: list markets for sweep: %w", err)
	}

	live := make([]domain.Order, 0, len(snap.State.Orders))
	for _, o := range snap.State.Orders {
		if o.Status == domain.StatusLive {
			live = append(live, o)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ID > live[j].ID })

	for _, incoming := range live {
		proposal, ok := s.matcher.Match(snap.State.Orders, markets, incoming)
		if !ok {
			continue
		}
		return s.settle(ctx, proposal, incoming.MarketID, uuid.NewString())
	}
	return nil, nil
}

// settle submits the add-trade transaction for an approved proposal and
// mirrors the resulting trade.
func (s *OrderService) settle(ctx context.Context, proposal match.Proposal, marketID uint64, submissionID string) (*domain.Trade, error) {
	adminState, err := s.client.QueryState(ctx, s.adminSigner)
	if err != nil {
		return nil, fmt.Errorf("order_service: query admin state: %w", err)
	}

	cmd := rollup.EncodeCommand(adminState.Player.Nonce, rollup.OpAddTrade, []uint64{
		proposal.AOrderID,
		proposal.BOrderID,
		proposal.AActualAmount,
		proposal.BActualAmount,
	})
	settled, err := s.client.SendTransaction(ctx, cmd, s.adminSigner)
	if err != nil {
		return nil, fmt.Errorf("order_service: settle trade: %w", err)
	}

	if len(settled.State.Trades) == 0 {
		return nil, fmt.Errorf("order_service: settlement accepted but no trade recorded")
	}
	trade := settled.State.Trades[len(settled.State.Trades)-1]

	if err := s.trades.Insert(ctx, domain.TradeRecord{
		Trade:        trade,
		MarketID:     marketID,
		SubmissionID: submissionID,
		SettledAt:    time.Now().UTC(),
	}); err != nil {
		s.logger.WarnContext(ctx, "order_service: mirror trade failed",
			slog.Uint64("trade_id", trade.TradeID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order_service: trade settled",
		slog.Uint64("trade_id", trade.TradeID),
		slog.Uint64("a_order_id", trade.AOrderID),
		slog.Uint64("b_order_id", trade.BOrderID),
		slog.Uint64("a_amount", trade.AActualAmount),
		slog.Uint64("b_amount", trade.BActualAmount),
	)
	_ = s.notifier.Notify(ctx, notify.EventTradeSettled, "Trade settled",
		fmt.Sprintf("trade %d matched orders %d/%d", trade.TradeID, trade.AOrderID, trade.BOrderID))

	return &trade, nil
}

// CancelOrder submits a cancel transaction for the given order id and
// reports the order's resulting status.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uint64) (domain.Status, error) {
	state, err := s.client.QueryState(ctx, s.signer)
	if err != nil {
		return 0, fmt.Errorf("order_service: query state: %w", err)
	}

	cmd := rollup.EncodeCommand(state.Player.Nonce, rollup.OpCancelOrder, []uint64{orderID})
	after, err := s.client.SendTransaction(ctx, cmd, s.signer)
	if err != nil {
		return 0, fmt.Errorf("order_service: cancel order %d: %w", orderID, err)
	}

	status := domain.StatusCancelled
	for _, o := range after.State.Orders {
		if o.ID == orderID {
			status = o.Status
			break
		}
	}

	s.logger.InfoContext(ctx, "order_service: order cancelled",
		slog.Uint64("order_id", orderID),
		slog.Int("status", int(status)),
	)
	return status, nil
}

// GetOrder retrieves a locally mirrored order by ledger id.
func (s *OrderService) GetOrder(ctx context.Context, id uint64) (domain.OrderRecord, error) {
	rec, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.OrderRecord{}, fmt.Errorf("order_service: get order %d: %w", id, err)
	}
	return rec, nil
}

// ListByMarket returns locally mirrored orders for one market.
func (s *OrderService) ListByMarket(ctx context.Context, marketID uint64, limit int) ([]domain.OrderRecord, error) {
	recs, err := s.orders.ListByMarket(ctx, marketID, limit)
	if err != nil {
		return nil, fmt.Errorf("order_service: list by market %d: %w", marketID, err)
	}
	return recs, nil
}

// lookupMarket resolves a market from the cache and requires it to be open.
func (s *OrderService) lookupMarket(ctx context.Context, marketID uint64) (domain.Market, error) {
	market, err := s.markets.Get(ctx, marketID)
	if err != nil {
		return domain.Market{}, fmt.Errorf("order_service: market %d: %w", marketID, err)
	}
	if !market.Open() {
		return domain.Market{}, fmt.Errorf("order_service: market %d: %w", marketID, domain.ErrMarketClosed)
	}
	return market, nil
}

// precheckFunds rejects a placement the ledger would bounce: the traded
// token must cover the cost, the fee token must cover the flat fee, and
// neither locked balance may cross the 63-bit ceiling.
func (s *OrderService) precheckFunds(before domain.StateSnapshot, tokenIndex uint32, cost uint64) error {
	pos := before.Player.Position(tokenIndex)
	if pos.Balance < cost {
		return fmt.Errorf("order_service: token %d balance %d below cost %d: %w",
			tokenIndex, pos.Balance, cost, domain.ErrInsufficientBalance)
	}
	if pos.LockedBalance > maxLockedBalance-cost {
		return fmt.Errorf("order_service: token %d locked balance would overflow: %w",
			tokenIndex, domain.ErrAmountOverflow)
	}

	feePos := before.Player.Position(s.params.FeeTokenIndex)
	if feePos.Balance < s.params.Fee {
		return fmt.Errorf("order_service: fee token balance %d below fee %d: %w",
			feePos.Balance, s.params.Fee, domain.ErrInsufficientFee)
	}
	if feePos.LockedBalance > maxLockedBalance-s.params.Fee {
		return fmt.Errorf("order_service: fee token locked balance would overflow: %w",
			domain.ErrAmountOverflow)
	}
	return nil
}

// maxLockedBalance is the ledger's 63-bit amount ceiling.
const maxLockedBalance = uint64(math.MaxInt64)

// limitOrderCost is the escrow a limit order requires: the quoted amount
// valued at the limit price for a buy, the raw amount for a sell.
func limitOrderCost(side domain.Side, price, amount, precision uint64) (uint64, error) {
	if side == domain.SideSell {
		return amount, nil
	}
	cost := match.CrossAmount(price, amount, precision)
	if match.ExceedsCeiling(cost) {
		return 0, fmt.Errorf("order_service: limit buy cost: %w", domain.ErrAmountOverflow)
	}
	return cost.Uint64(), nil
}

// marketOrderCost is the escrow a market order requires. When the order
// states its spend directly that amount is escrowed; otherwise the spend is
// estimated from the market's last price with a 2x buffer against movement
// before settlement.
func marketOrderCost(market domain.Market, side domain.Side, quantityB, quantityA, precision uint64) (uint64, error) {
	if side == domain.SideBuy {
		if quantityA != 0 {
			return quantityA, nil
		}
		cost := match.CrossAmount(market.LastPrice, quantityB, precision)
		if match.ExceedsCeiling(cost) {
			return 0, fmt.Errorf("order_service: market buy cost: %w", domain.ErrAmountOverflow)
		}
		cost.Lsh(cost, 1)
		if match.ExceedsCeiling(cost) {
			return 0, fmt.Errorf("order_service: market buy cost buffer: %w", domain.ErrAmountOverflow)
		}
		return cost.Uint64(), nil
	}

	if quantityB != 0 {
		return quantityB, nil
	}
	if market.LastPrice == 0 {
		return 0, fmt.Errorf("order_service: market %d has no last price to estimate a sell from", market.MarketID)
	}
	cost := new(big.Int).SetUint64(quantityA)
	cost.Mul(cost, big.NewInt(2))
	cost.Mul(cost, new(big.Int).SetUint64(precision))
	cost.Div(cost, new(big.Int).SetUint64(market.LastPrice))
	if match.ExceedsCeiling(cost) {
		return 0, fmt.Errorf("order_service: market sell cost: %w", domain.ErrAmountOverflow)
	}
	return cost.Uint64(), nil
}
