package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/zkxchange/rollexbot/internal/domain"
)

// OrderHandler serves the mirrored order and trade history for this client.
// Reads go straight to the store; placement happens on the signed RPC path.
type OrderHandler struct {
	orders domain.OrderStore
	trades domain.TradeStore
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler backed by the given mirrors.
func NewOrderHandler(orders domain.OrderStore, trades domain.TradeStore, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		trades: trades,
		logger: logger,
	}
}

// listOrdersResponse wraps the list orders response.
type listOrdersResponse struct {
	Orders []domain.OrderRecord `json:"orders"`
}

// listTradesResponse wraps the list trades response.
type listTradesResponse struct {
	Trades []domain.TradeRecord `json:"trades"`
}

// ListOrders returns orders this client has submitted to a market, most
// recent first.
// GET /api/orders?market={id}&limit={n}
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	marketID, ok := queryID(r, "market")
	if !ok {
		writeError(w, http.StatusBadRequest, "market query parameter required")
		return
	}

	orders, err := h.orders.ListByMarket(r.Context(), marketID, parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list orders failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	if orders == nil {
		orders = []domain.OrderRecord{}
	}

	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: orders})
}

// GetOrder returns a single mirrored order by its ledger id.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get order failed",
			slog.Uint64("order_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get order")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// ListTrades returns trades this client has settled on a market, most recent
// first.
// GET /api/trades?market={id}&limit={n}
func (h *OrderHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	marketID, ok := queryID(r, "market")
	if !ok {
		writeError(w, http.StatusBadRequest, "market query parameter required")
		return
	}

	trades, err := h.trades.ListByMarket(r.Context(), marketID, parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	if trades == nil {
		trades = []domain.TradeRecord{}
	}

	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades})
}
