package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zkxchange/rollexbot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Insert mirrors a settled trade. Settlements are immutable, so a conflicting
// ledger id is ignored rather than updated.
func (s *TradeStore) Insert(ctx context.Context, rec domain.TradeRecord) error {
	const query = `
		INSERT INTO trades (
			trade_id, a_order_id, b_order_id,
			a_actual_amount, b_actual_amount,
			market_id, submission_id, settled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (trade_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		int64(rec.TradeID), int64(rec.AOrderID), int64(rec.BOrderID),
		int64(rec.AActualAmount), int64(rec.BActualAmount),
		int64(rec.MarketID), rec.SubmissionID, rec.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %d: %w", rec.TradeID, err)
	}
	return nil
}

const tradeSelectCols = `trade_id, a_order_id, b_order_id,
	a_actual_amount, b_actual_amount,
	market_id, submission_id, settled_at`

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var recs []domain.TradeRecord
	for rows.Next() {
		var rec domain.TradeRecord
		var tradeID, aOrderID, bOrderID, aAmount, bAmount, marketID int64

		if err := rows.Scan(
			&tradeID, &aOrderID, &bOrderID,
			&aAmount, &bAmount,
			&marketID, &rec.SubmissionID, &rec.SettledAt,
		); err != nil {
			return nil, err
		}

		rec.TradeID = uint64(tradeID)
		rec.AOrderID = uint64(aOrderID)
		rec.BOrderID = uint64(bOrderID)
		rec.AActualAmount = uint64(aAmount)
		rec.BActualAmount = uint64(bAmount)
		rec.MarketID = uint64(marketID)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ListByMarket returns the most recent mirrored trades for one market.
func (s *TradeStore) ListByMarket(ctx context.Context, marketID uint64, limit int) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE market_id = $1 ORDER BY settled_at DESC`
	args := []any{int64(marketID)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by market %d: %w", marketID, err)
	}
	defer rows.Close()

	recs, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades by market %d: %w", marketID, err)
	}
	return recs, nil
}

// ListBefore returns all mirrored trades settled before the cutoff, oldest
// first, for archival.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE settled_at < $1 ORDER BY settled_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before, err)
	}
	defer rows.Close()

	recs, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades before %s: %w", before, err)
	}
	return recs, nil
}
