package rollup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zkxchange/rollexbot/internal/domain"
)

// OrderEventHandler is called for each order event the ledger publishes.
type OrderEventHandler func(ctx context.Context, order domain.Order)

// TradeEventHandler is called for each settled trade event.
type TradeEventHandler func(ctx context.Context, trade domain.Trade)

// wsEvent is one message on the ledger's event stream.
type wsEvent struct {
	EventID uint64    `json:"event_id"`
	Kind    string    `json:"kind"` // "order" or "trade"
	Order   *APIOrder `json:"order,omitempty"`
	Trade   *APITrade `json:"trade,omitempty"`
}

// StateFeed subscribes to the ledger's event WebSocket and invokes the
// provided handlers per event. It reconnects with a flat backoff on
// disconnect and resumes from the last seen event id.
type StateFeed struct {
	wsURL     string
	onOrder   OrderEventHandler
	onTrade   TradeEventHandler
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}

	lastEventID uint64
}

// NewStateFeed creates a feed for the event stream at wsURL.
func NewStateFeed(wsURL string, onOrder OrderEventHandler, onTrade TradeEventHandler, logger *slog.Logger) *StateFeed {
	return &StateFeed{
		wsURL:   wsURL,
		onOrder: onOrder,
		onTrade: onTrade,
		logger:  logger.With(slog.String("component", "state_feed")),
		done:    make(chan struct{}),
	}
}

// Run connects and consumes events until ctx is cancelled or Close is
// called. Reconnects on disconnect.
func (f *StateFeed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		if err := f.runConnection(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("event stream disconnected, reconnecting",
				slog.String("error", err.Error()),
				slog.Uint64("last_event", f.lastEventID),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *StateFeed) runConnection(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("rollup: dial event stream: %w", err)
	}
	defer conn.Close()

	sub := map[string]any{
		"subscribe": []string{"order", "trade"},
		"after":     f.lastEventID,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("rollup: subscribe: %w", err)
	}
	f.logger.Info("event stream subscribed", slog.Uint64("after", f.lastEventID))

	// Unblock ReadMessage when the context ends.
	go func() {
		select {
		case <-ctx.Done():
		case <-f.done:
		}
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", domain.ErrWSDisconnect, err)
		}

		var ev wsEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			f.logger.Warn("skipping malformed event", slog.String("error", err.Error()))
			continue
		}
		if ev.EventID > f.lastEventID {
			f.lastEventID = ev.EventID
		}

		switch ev.Kind {
		case "order":
			if ev.Order != nil && f.onOrder != nil {
				f.onOrder(ctx, ev.Order.ToDomain())
			}
		case "trade":
			if ev.Trade != nil && f.onTrade != nil {
				f.onTrade(ctx, ev.Trade.ToDomain())
			}
		default:
			f.logger.Debug("ignoring event kind", slog.String("kind", ev.Kind))
		}
	}
}

// Close stops the feed.
func (f *StateFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
