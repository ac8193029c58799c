package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/zkxchange/rollexbot/internal/crypto"
	"github.com/zkxchange/rollexbot/internal/domain"
	"github.com/zkxchange/rollexbot/internal/match"
	"github.com/zkxchange/rollexbot/internal/notify"
)

const (
	testPlayerKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	testAdminKey  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

const px = uint64(1_000_000_000)

// fakeLedger serves scripted snapshots and records every submitted command.
type fakeLedger struct {
	t       *testing.T
	queries []domain.StateSnapshot
	sends   []domain.StateSnapshot
	cmds    [][]uint64
}

func (f *fakeLedger) QueryState(_ context.Context, _ *crypto.Signer) (domain.StateSnapshot, error) {
	if len(f.queries) == 0 {
		f.t.Fatal("unexpected QueryState call")
	}
	snap := f.queries[0]
	f.queries = f.queries[1:]
	return snap, nil
}

func (f *fakeLedger) SendTransaction(_ context.Context, cmd []uint64, _ *crypto.Signer) (domain.StateSnapshot, error) {
	f.cmds = append(f.cmds, cmd)
	if len(f.sends) == 0 {
		f.t.Fatal("unexpected SendTransaction call")
	}
	snap := f.sends[0]
	f.sends = f.sends[1:]
	return snap, nil
}

type memOrderStore struct{ recs []domain.OrderRecord }

func (m *memOrderStore) Insert(_ context.Context, rec domain.OrderRecord) error {
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memOrderStore) Get(_ context.Context, id uint64) (domain.OrderRecord, error) {
	for _, r := range m.recs {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.OrderRecord{}, domain.ErrNotFound
}

func (m *memOrderStore) ListByMarket(_ context.Context, marketID uint64, _ int) ([]domain.OrderRecord, error) {
	var out []domain.OrderRecord
	for _, r := range m.recs {
		if r.MarketID == marketID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memOrderStore) ListBefore(_ context.Context, _ time.Time) ([]domain.OrderRecord, error) {
	return m.recs, nil
}

type memTradeStore struct{ recs []domain.TradeRecord }

func (m *memTradeStore) Insert(_ context.Context, rec domain.TradeRecord) error {
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memTradeStore) ListByMarket(_ context.Context, marketID uint64, _ int) ([]domain.TradeRecord, error) {
	var out []domain.TradeRecord
	for _, r := range m.recs {
		if r.MarketID == marketID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memTradeStore) ListBefore(_ context.Context, _ time.Time) ([]domain.TradeRecord, error) {
	return m.recs, nil
}

type memMarketCache struct{ markets map[uint64]domain.Market }

func (m *memMarketCache) Set(_ context.Context, market domain.Market) error {
	if m.markets == nil {
		m.markets = make(map[uint64]domain.Market)
	}
	m.markets[market.MarketID] = market
	return nil
}

func (m *memMarketCache) Get(_ context.Context, id uint64) (domain.Market, error) {
	market, ok := m.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrMarketNotFound
	}
	return market, nil
}

func (m *memMarketCache) SetAll(_ context.Context, markets []domain.Market) error {
	if m.markets == nil {
		m.markets = make(map[uint64]domain.Market)
	}
	for _, market := range markets {
		m.markets[market.MarketID] = market
	}
	return nil
}

func (m *memMarketCache) All(_ context.Context) ([]domain.Market, error) {
	out := make([]domain.Market, 0, len(m.markets))
	for _, market := range m.markets {
		out = append(out, market)
	}
	return out, nil
}

type stubLimiter struct{ allowed bool }

func (l stubLimiter) Allow(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	return l.allowed, nil
}

type fixture struct {
	svc    *OrderService
	ledger *fakeLedger
	orders *memOrderStore
	trades *memTradeStore
	player *crypto.Signer
}

func newFixture(t *testing.T, markets ...domain.Market) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	params := match.DefaultParams()

	player, err := crypto.NewSigner(testPlayerKey)
	if err != nil {
		t.Fatal(err)
	}
	admin, err := crypto.NewSigner(testAdminKey)
	if err != nil {
		t.Fatal(err)
	}

	cache := &memMarketCache{markets: map[uint64]domain.Market{}}
	for _, m := range markets {
		cache.markets[m.MarketID] = m
	}

	ledger := &fakeLedger{t: t}
	orders := &memOrderStore{}
	trades := &memTradeStore{}

	svc := NewOrderService(
		ledger,
		player,
		match.NewMatcher(params, match.NewChecker(logger), logger),
		match.NewInvariantChecker(params),
		params,
		orders,
		trades,
		cache,
		stubLimiter{allowed: true},
		notify.NewNotifier(nil, nil, logger),
		logger,
	).WithAdminSigner(admin)

	return &fixture{svc: svc, ledger: ledger, orders: orders, trades: trades, player: player}
}

func openMarket() domain.Market {
	return domain.Market{
		MarketID:  1,
		Status:    domain.MarketStatusOpen,
		TokenA:    1,
		TokenB:    0,
		LastPrice: 2 * px,
	}
}

func snapshot(nonce, orderCounter uint64, positions map[uint32]domain.Position, orders []domain.Order, trades []domain.Trade) domain.StateSnapshot {
	return domain.StateSnapshot{
		Player: domain.PlayerState{Nonce: nonce, Positions: positions},
		State: domain.GlobalState{
			OrderCounter: orderCounter,
			Orders:       orders,
			Trades:       trades,
		},
	}
}

func TestPlaceLimitOrderRests(t *testing.T) {
	f := newFixture(t, openMarket())

	before := snapshot(7, 3, map[uint32]domain.Position{
		1: {Balance: 1000},
		0: {Balance: 50},
	}, nil, nil)

	placed := domain.Order{
		ID: 4, MarketID: 1, Side: domain.SideBuy, Kind: domain.KindLimit,
		Owner: f.player.PlayerID(), Price: 2 * px, QuantityB: 100,
		LockedBalance: 200, LockedFee: 3,
	}
	after := snapshot(8, 4, map[uint32]domain.Position{
		1: {Balance: 800, LockedBalance: 200},
		0: {Balance: 47, LockedBalance: 3},
	}, []domain.Order{placed}, nil)

	f.ledger.queries = []domain.StateSnapshot{before}
	f.ledger.sends = []domain.StateSnapshot{after}

	res, err := f.svc.PlaceLimitOrder(context.Background(), 1, domain.SideBuy, 2*px, 100)
	if err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}
	if res.Order.ID != 4 {
		t.Errorf("placed order id = %d, want 4", res.Order.ID)
	}
	if res.Trade != nil {
		t.Errorf("expected resting order, got trade %+v", res.Trade)
	}
	if res.SubmissionID == "" {
		t.Error("missing submission id")
	}

	if len(f.ledger.cmds) != 1 {
		t.Fatalf("sent %d commands, want 1", len(f.ledger.cmds))
	}
	cmd := f.ledger.cmds[0]
	wantHead := uint64(7)<<16 | 4<<8 | 5
	if cmd[0] != wantHead {
		t.Errorf("command head = %#x, want %#x", cmd[0], wantHead)
	}
	wantParams := []uint64{1, 1, 2 * px, 100}
	for i, p := range wantParams {
		if cmd[1+i] != p {
			t.Errorf("param[%d] = %d, want %d", i, cmd[1+i], p)
		}
	}

	if len(f.orders.recs) != 1 || f.orders.recs[0].ID != 4 {
		t.Errorf("order not mirrored: %+v", f.orders.recs)
	}
}

func TestPlaceLimitOrderMatchesAndSettles(t *testing.T) {
	f := newFixture(t, openMarket())

	restingSell := domain.Order{
		ID: 9, MarketID: 1, Side: domain.SideSell, Kind: domain.KindLimit,
		Owner: domain.PlayerID{0xaa, 0xbb}, Price: 2 * px, QuantityB: 50,
		LockedBalance: 50, LockedFee: 3,
	}

	before := snapshot(7, 3, map[uint32]domain.Position{
		1: {Balance: 1000},
		0: {Balance: 50},
	}, []domain.Order{restingSell}, nil)

	// Buy of 100 at 3.0: the resting sell's price 2.0 crosses, and
	// 2.0 * 50 == 100 units received, so the pairing settles.
	placedBuy := domain.Order{
		ID: 10, MarketID: 1, Side: domain.SideBuy, Kind: domain.KindLimit,
		Owner: f.player.PlayerID(), Price: 3 * px, QuantityB: 100,
		LockedBalance: 300, LockedFee: 3,
	}
	after := snapshot(8, 4, map[uint32]domain.Position{
		1: {Balance: 700, LockedBalance: 300},
		0: {Balance: 47, LockedBalance: 3},
	}, []domain.Order{restingSell, placedBuy}, nil)

	adminState := snapshot(42, 4, nil, nil, nil)
	settledTrade := domain.Trade{TradeID: 1, AOrderID: 10, BOrderID: 9, AActualAmount: 100, BActualAmount: 50}
	settled := snapshot(43, 4, nil, nil, []domain.Trade{settledTrade})

	f.ledger.queries = []domain.StateSnapshot{before, adminState}
	f.ledger.sends = []domain.StateSnapshot{after, settled}

	res, err := f.svc.PlaceLimitOrder(context.Background(), 1, domain.SideBuy, 3*px, 100)
	if err != nil {
		t.Fatalf("PlaceLimitOrder: %v", err)
	}
	if res.Trade == nil {
		t.Fatal("expected a settled trade")
	}
	if res.Trade.TradeID != 1 || res.Trade.AOrderID != 10 || res.Trade.BOrderID != 9 {
		t.Errorf("trade = %+v", res.Trade)
	}

	if len(f.ledger.cmds) != 2 {
		t.Fatalf("sent %d commands, want 2", len(f.ledger.cmds))
	}
	settleCmd := f.ledger.cmds[1]
	wantHead := uint64(42)<<16 | 4<<8 | 11
	if settleCmd[0] != wantHead {
		t.Errorf("settle head = %#x, want %#x", settleCmd[0], wantHead)
	}
	wantParams := []uint64{10, 9, 100, 50}
	for i, p := range wantParams {
		if settleCmd[1+i] != p {
			t.Errorf("settle param[%d] = %d, want %d", i, settleCmd[1+i], p)
		}
	}

	if len(f.trades.recs) != 1 || f.trades.recs[0].TradeID != 1 {
		t.Errorf("trade not mirrored: %+v", f.trades.recs)
	}
	if f.trades.recs[0].SubmissionID != res.SubmissionID {
		t.Error("trade record not tied to the placement submission")
	}
}

func TestSweepBookSettlesCrossingPair(t *testing.T) {
	f := newFixture(t, openMarket())

	restingSell := domain.Order{
		ID: 9, MarketID: 1, Side: domain.SideSell, Kind: domain.KindLimit,
		Owner: domain.PlayerID{0xaa, 0xbb}, Price: 2 * px, QuantityB: 50,
		LockedBalance: 50, LockedFee: 3,
	}
	restingBuy := domain.Order{
		ID: 10, MarketID: 1, Side: domain.SideBuy, Kind: domain.KindLimit,
		Owner: domain.PlayerID{0xcc, 0xdd}, Price: 3 * px, QuantityB: 100,
		LockedBalance: 300, LockedFee: 3,
	}

	book := snapshot(42, 10, nil, []domain.Order{restingSell, restingBuy}, nil)
	adminState := snapshot(42, 10, nil, nil, nil)
	settledTrade := domain.Trade{TradeID: 2, AOrderID: 10, BOrderID: 9, AActualAmount: 100, BActualAmount: 50}
	settled := snapshot(43, 10, nil, nil, []domain.Trade{settledTrade})

	f.ledger.queries = []domain.StateSnapshot{book, adminState}
	f.ledger.sends = []domain.StateSnapshot{settled}

	trade, err := f.svc.SweepBook(context.Background())
	if err != nil {
		t.Fatalf("SweepBook: %v", err)
	}
	if trade == nil || trade.TradeID != 2 {
		t.Fatalf("trade = %+v, want settled trade 2", trade)
	}

	if len(f.ledger.cmds) != 1 {
		t.Fatalf("sent %d commands, want 1", len(f.ledger.cmds))
	}
	cmd := f.ledger.cmds[0]
	wantHead := uint64(42)<<16 | 4<<8 | 11
	if cmd[0] != wantHead {
		t.Errorf("settle head = %#x, want %#x", cmd[0], wantHead)
	}
	wantParams := []uint64{10, 9, 100, 50}
	for i, p := range wantParams {
		if cmd[1+i] != p {
			t.Errorf("settle param[%d] = %d, want %d", i, cmd[1+i], p)
		}
	}

	if len(f.trades.recs) != 1 || f.trades.recs[0].MarketID != 1 {
		t.Errorf("trade not mirrored with market: %+v", f.trades.recs)
	}
}

func TestSweepBookCalm(t *testing.T) {
	f := newFixture(t, openMarket())

	restingSell := domain.Order{
		ID: 9, MarketID: 1, Side: domain.SideSell, Kind: domain.KindLimit,
		Owner: domain.PlayerID{0xaa, 0xbb}, Price: 2 * px, QuantityB: 50,
		LockedBalance: 50, LockedFee: 3,
	}
	f.ledger.queries = []domain.StateSnapshot{snapshot(42, 9, nil, []domain.Order{restingSell}, nil)}

	trade, err := f.svc.SweepBook(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if trade != nil {
		t.Errorf("unexpected trade %+v", trade)
	}
	if len(f.ledger.cmds) != 0 {
		t.Error("command sent on a calm book")
	}
}

func TestSweepBookRequiresSettlementKey(t *testing.T) {
	f := newFixture(t, openMarket())
	f.svc.adminSigner = nil

	if _, err := f.svc.SweepBook(context.Background()); err == nil {
		t.Fatal("expected error without settlement key")
	}
}

func TestPlaceLimitOrderRateLimited(t *testing.T) {
	f := newFixture(t, openMarket())
	f.svc.limiter = stubLimiter{allowed: false}

	_, err := f.svc.PlaceLimitOrder(context.Background(), 1, domain.SideBuy, px, 10)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if len(f.ledger.cmds) != 0 {
		t.Error("command sent despite rate limit")
	}
}

func TestPlaceLimitOrderInsufficientBalance(t *testing.T) {
	f := newFixture(t, openMarket())

	// Cost of a buy of 100 at 2.0 is 200; the account only holds 150.
	f.ledger.queries = []domain.StateSnapshot{snapshot(7, 3, map[uint32]domain.Position{
		1: {Balance: 150},
		0: {Balance: 50},
	}, nil, nil)}

	_, err := f.svc.PlaceLimitOrder(context.Background(), 1, domain.SideBuy, 2*px, 100)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if len(f.ledger.cmds) != 0 {
		t.Error("command sent despite failing precheck")
	}
}

func TestPlaceLimitOrderInsufficientFee(t *testing.T) {
	f := newFixture(t, openMarket())

	f.ledger.queries = []domain.StateSnapshot{snapshot(7, 3, map[uint32]domain.Position{
		1: {Balance: 1000},
		0: {Balance: 2}, // fee is 3
	}, nil, nil)}

	_, err := f.svc.PlaceLimitOrder(context.Background(), 1, domain.SideBuy, 2*px, 100)
	if !errors.Is(err, domain.ErrInsufficientFee) {
		t.Fatalf("err = %v, want ErrInsufficientFee", err)
	}
}

func TestPlaceLimitOrderMarketClosed(t *testing.T) {
	closed := openMarket()
	closed.Status = domain.MarketStatusClosed
	f := newFixture(t, closed)

	_, err := f.svc.PlaceLimitOrder(context.Background(), 1, domain.SideBuy, px, 10)
	if !errors.Is(err, domain.ErrMarketClosed) {
		t.Fatalf("err = %v, want ErrMarketClosed", err)
	}
}

func TestPlaceLimitOrderUnknownMarket(t *testing.T) {
	f := newFixture(t, openMarket())

	_, err := f.svc.PlaceLimitOrder(context.Background(), 99, domain.SideBuy, px, 10)
	if !errors.Is(err, domain.ErrMarketNotFound) {
		t.Fatalf("err = %v, want ErrMarketNotFound", err)
	}
}

func TestPlaceLimitOrderReportsViolation(t *testing.T) {
	f := newFixture(t, openMarket())

	before := snapshot(7, 3, map[uint32]domain.Position{
		1: {Balance: 1000},
		0: {Balance: 50},
	}, nil, nil)

	placed := domain.Order{
		ID: 4, MarketID: 1, Side: domain.SideBuy, Kind: domain.KindLimit,
		Owner: f.player.PlayerID(), Price: 2 * px, QuantityB: 100,
		LockedBalance: 200,
	}
	// Ledger locked 199 instead of the 200 the placement costs.
	after := snapshot(8, 4, map[uint32]domain.Position{
		1: {Balance: 801, LockedBalance: 199},
		0: {Balance: 47, LockedBalance: 3},
	}, []domain.Order{placed}, nil)

	f.ledger.queries = []domain.StateSnapshot{before}
	f.ledger.sends = []domain.StateSnapshot{after}

	res, err := f.svc.PlaceLimitOrder(context.Background(), 1, domain.SideBuy, 2*px, 100)
	var v *match.Violation
	if !errors.As(err, &v) {
		t.Fatalf("err = %v, want *match.Violation", err)
	}
	if res.Order.ID != 4 {
		t.Errorf("result should still carry the placed order, got %+v", res.Order)
	}
	// The settlement leg must not run on a placement that failed verification.
	if len(f.ledger.cmds) != 1 {
		t.Errorf("sent %d commands, want 1", len(f.ledger.cmds))
	}
}

func TestPlaceMarketOrderEncodesQuantities(t *testing.T) {
	f := newFixture(t, openMarket())

	before := snapshot(7, 3, map[uint32]domain.Position{
		1: {Balance: 1000},
		0: {Balance: 50},
	}, nil, nil)
	placed := domain.Order{
		ID: 4, MarketID: 1, Side: domain.SideBuy, Kind: domain.KindMarket,
		Owner: f.player.PlayerID(), QuantityA: 300,
		LockedBalance: 300, LockedFee: 3,
	}
	after := snapshot(8, 4, map[uint32]domain.Position{
		1: {Balance: 700, LockedBalance: 300},
		0: {Balance: 47, LockedBalance: 3},
	}, []domain.Order{placed}, nil)

	f.ledger.queries = []domain.StateSnapshot{before}
	f.ledger.sends = []domain.StateSnapshot{after}

	_, err := f.svc.PlaceMarketOrder(context.Background(), 1, domain.SideBuy, 0, 300)
	if err != nil {
		t.Fatalf("PlaceMarketOrder: %v", err)
	}

	cmd := f.ledger.cmds[0]
	wantHead := uint64(7)<<16 | 4<<8 | 6
	if cmd[0] != wantHead {
		t.Errorf("command head = %#x, want %#x", cmd[0], wantHead)
	}
	wantParams := []uint64{1, 1, 0, 300}
	for i, p := range wantParams {
		if cmd[1+i] != p {
			t.Errorf("param[%d] = %d, want %d", i, cmd[1+i], p)
		}
	}
}

func TestCancelOrderReportsStatus(t *testing.T) {
	f := newFixture(t, openMarket())

	cancelled := domain.Order{ID: 4, MarketID: 1, Status: domain.StatusCancelled}
	f.ledger.queries = []domain.StateSnapshot{snapshot(7, 4, nil, nil, nil)}
	f.ledger.sends = []domain.StateSnapshot{snapshot(8, 4, nil, []domain.Order{cancelled}, nil)}

	status, err := f.svc.CancelOrder(context.Background(), 4)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if status != domain.StatusCancelled {
		t.Errorf("status = %v, want cancelled", status)
	}

	cmd := f.ledger.cmds[0]
	wantHead := uint64(7)<<16 | 1<<8 | 7
	if cmd[0] != wantHead {
		t.Errorf("command head = %#x, want %#x", cmd[0], wantHead)
	}
	if cmd[1] != 4 {
		t.Errorf("param = %d, want 4", cmd[1])
	}
}

func TestLimitOrderCost(t *testing.T) {
	tests := []struct {
		name    string
		side    domain.Side
		price   uint64
		amount  uint64
		want    uint64
		wantErr bool
	}{
		{name: "buy values amount at price", side: domain.SideBuy, price: 2 * px, amount: 100, want: 200},
		{name: "buy truncates", side: domain.SideBuy, price: px / 2, amount: 3, want: 1},
		{name: "sell is the raw amount", side: domain.SideSell, price: 2 * px, amount: 100, want: 100},
		{name: "buy overflow", side: domain.SideBuy, price: 1 << 62, amount: 1 << 40, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := limitOrderCost(tt.side, tt.price, tt.amount, px)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrAmountOverflow) {
					t.Fatalf("err = %v, want ErrAmountOverflow", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("cost = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMarketOrderCost(t *testing.T) {
	market := openMarket() // last price 2.0

	tests := []struct {
		name      string
		side      domain.Side
		quantityB uint64
		quantityA uint64
		want      uint64
		wantErr   bool
	}{
		{name: "buy with stated spend", side: domain.SideBuy, quantityA: 500, want: 500},
		{name: "buy estimated with buffer", side: domain.SideBuy, quantityB: 50, want: 200}, // 50*2.0*2
		{name: "sell with stated amount", side: domain.SideSell, quantityB: 70, want: 70},
		{name: "sell estimated with buffer", side: domain.SideSell, quantityA: 100, want: 100}, // 100*2/2.0
		{name: "buy estimate overflow", side: domain.SideBuy, quantityB: 1 << 63, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := marketOrderCost(market, tt.side, tt.quantityB, tt.quantityA, px)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("cost = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMarketOrderCostNoLastPrice(t *testing.T) {
	market := openMarket()
	market.LastPrice = 0

	if _, err := marketOrderCost(market, domain.SideSell, 0, 100, px); err == nil {
		t.Fatal("expected error for sell estimate without a last price")
	}
}
