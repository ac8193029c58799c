package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zkxchange/rollexbot/internal/domain"
	"github.com/zkxchange/rollexbot/internal/match"
	"github.com/zkxchange/rollexbot/internal/platform/rollup"
	"github.com/zkxchange/rollexbot/internal/server"
	"github.com/zkxchange/rollexbot/internal/server/handler"
	"github.com/zkxchange/rollexbot/internal/service"
)

const (
	// marketRefreshInterval is how often the market/token listing is pulled
	// from the ledger into the cache and mirror.
	marketRefreshInterval = 1 * time.Minute

	// sweepInterval is how often the operator deployment scans the resting
	// book for crossing pairs to settle.
	sweepInterval = 5 * time.Second
)

// TradeMode runs the market refresh loop and, when the settlement key is
// configured, the book sweep loop that settles crossing pairs. Order
// placement itself is driven through the OrderService by the operator.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	g, ctx := errgroup.WithContext(ctx)

	marketSvc := a.buildMarketService(deps)
	orderSvc := a.buildOrderService(deps)

	g.Go(func() error {
		return marketSvc.Run(ctx, marketRefreshInterval)
	})

	if deps.AdminSigner != nil {
		g.Go(func() error {
			return a.runSweep(ctx, orderSvc)
		})
	} else {
		a.logger.InfoContext(ctx, "no settlement key configured, sweep loop disabled")
	}

	a.startArchiver(ctx, g, deps)
	a.startServer(ctx, g, deps, marketSvc)

	return g.Wait()
}

// MonitorMode follows the ledger's event stream and mirrors every order and
// trade it publishes into the local stores. No transactions are submitted.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	marketSvc := a.buildMarketService(deps)
	g.Go(func() error {
		return marketSvc.Run(ctx, marketRefreshInterval)
	})

	feed := rollup.NewStateFeed(
		a.cfg.Rollup.WsHost,
		func(ctx context.Context, order domain.Order) {
			if err := deps.OrderStore.Insert(ctx, domain.OrderRecord{
				Order:    order,
				PlacedAt: time.Now().UTC(),
			}); err != nil {
				a.logger.WarnContext(ctx, "mirror order event failed",
					slog.Uint64("order_id", order.ID),
					slog.String("error", err.Error()),
				)
			}
		},
		func(ctx context.Context, trade domain.Trade) {
			// The event carries order ids only; resolve the market through
			// the mirrored buy-side order when we have it.
			var marketID uint64
			if rec, err := deps.OrderStore.Get(ctx, trade.AOrderID); err == nil {
				marketID = rec.MarketID
			}
			if err := deps.TradeStore.Insert(ctx, domain.TradeRecord{
				Trade:     trade,
				MarketID:  marketID,
				SettledAt: time.Now().UTC(),
			}); err != nil {
				a.logger.WarnContext(ctx, "mirror trade event failed",
					slog.Uint64("trade_id", trade.TradeID),
					slog.String("error", err.Error()),
				)
			}
		},
		a.logger,
	)
	g.Go(func() error {
		defer feed.Close()
		return feed.Run(ctx)
	})

	a.startArchiver(ctx, g, deps)
	a.startServer(ctx, g, deps, marketSvc)

	return g.Wait()
}

// ServerMode serves the status API over the existing mirrors without
// submitting transactions or following the event stream.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	marketSvc := a.buildMarketService(deps)
	g.Go(func() error {
		return marketSvc.Run(ctx, marketRefreshInterval)
	})

	if !a.cfg.Server.Enabled {
		return fmt.Errorf("app: server mode requires server.enabled")
	}
	a.startServer(ctx, g, deps, marketSvc)

	return g.Wait()
}

// FullMode runs everything: market refresh, the event stream mirror, the
// sweep loop, archival, and the status server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	marketSvc := a.buildMarketService(deps)
	orderSvc := a.buildOrderService(deps)

	g.Go(func() error {
		return marketSvc.Run(ctx, marketRefreshInterval)
	})

	feed := rollup.NewStateFeed(
		a.cfg.Rollup.WsHost,
		func(ctx context.Context, order domain.Order) {
			_ = deps.OrderStore.Insert(ctx, domain.OrderRecord{
				Order:    order,
				PlacedAt: time.Now().UTC(),
			})
		},
		func(ctx context.Context, trade domain.Trade) {
			var marketID uint64
			if rec, err := deps.OrderStore.Get(ctx, trade.AOrderID); err == nil {
				marketID = rec.MarketID
			}
			_ = deps.TradeStore.Insert(ctx, domain.TradeRecord{
				Trade:     trade,
				MarketID:  marketID,
				SettledAt: time.Now().UTC(),
			})
		},
		a.logger,
	)
	g.Go(func() error {
		defer feed.Close()
		return feed.Run(ctx)
	})

	if deps.AdminSigner != nil {
		g.Go(func() error {
			return a.runSweep(ctx, orderSvc)
		})
	}

	a.startArchiver(ctx, g, deps)
	a.startServer(ctx, g, deps, marketSvc)

	return g.Wait()
}

// buildOrderService assembles the order placement pipeline from the wired
// dependencies.
func (a *App) buildOrderService(deps *Dependencies) *service.OrderService {
	params := match.Params{
		Precision:     a.cfg.Matching.Precision,
		Fee:           a.cfg.Matching.Fee,
		FeeTokenIndex: a.cfg.Matching.FeeTokenIndex,
	}
	checker := match.NewChecker(a.logger)
	matcher := match.NewMatcher(params, checker, a.logger)
	invariants := match.NewInvariantChecker(params)

	svc := service.NewOrderService(
		deps.Rollup,
		deps.Signer,
		matcher,
		invariants,
		params,
		deps.OrderStore,
		deps.TradeStore,
		deps.MarketCache,
		deps.RateLimiter,
		deps.Notifier,
		a.logger,
	)
	if deps.AdminSigner != nil {
		svc = svc.WithAdminSigner(deps.AdminSigner)
	}
	return svc
}

func (a *App) buildMarketService(deps *Dependencies) *service.MarketService {
	return service.NewMarketService(deps.Rollup, deps.MarketStore, deps.MarketCache, a.logger)
}

// runSweep periodically scans the book for crossing pairs and settles them.
// Sweep errors are logged and notified but do not stop the loop.
func (a *App) runSweep(ctx context.Context, orders *service.OrderService) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		trade, err := orders.SweepBook(ctx)
		if err != nil {
			a.logger.ErrorContext(ctx, "book sweep failed",
				slog.String("error", err.Error()),
			)
			continue
		}
		if trade != nil {
			a.logger.InfoContext(ctx, "book sweep settled trade",
				slog.Uint64("trade_id", trade.TradeID),
			)
		}
	}
}

// startArchiver launches the periodic trade/order archival loop when it is
// enabled and S3 was wired.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Archive.Enabled || deps.Archiver == nil {
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}

			cutoff := time.Now().UTC().Add(-retention)

			if path, n, err := deps.Archiver.ArchiveTrades(ctx, cutoff); err != nil {
				a.logger.ErrorContext(ctx, "trade archival failed",
					slog.String("error", err.Error()),
				)
			} else if n > 0 {
				a.logger.InfoContext(ctx, "trades archived",
					slog.String("path", path),
					slog.Int("count", n),
				)
			}

			if path, n, err := deps.Archiver.ArchiveOrders(ctx, cutoff); err != nil {
				a.logger.ErrorContext(ctx, "order archival failed",
					slog.String("error", err.Error()),
				)
			} else if n > 0 {
				a.logger.InfoContext(ctx, "orders archived",
					slog.String("path", path),
					slog.Int("count", n),
				)
			}
		}
	})
}

// startServer launches the status API when it is enabled.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, markets *service.MarketService) {
	if !a.cfg.Server.Enabled {
		return
	}

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health:  handler.NewHealthHandler(a.logger),
			Markets: handler.NewMarketHandler(markets, a.logger),
			Orders:  handler.NewOrderHandler(deps.OrderStore, deps.TradeStore, a.logger),
		},
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
