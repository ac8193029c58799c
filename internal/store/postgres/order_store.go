package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zkxchange/rollexbot/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Insert mirrors an order placement. Re-inserting the same ledger id updates
// the lifecycle fields, so a later snapshot of the same order refreshes the
// mirror instead of failing.
func (s *OrderStore) Insert(ctx context.Context, rec domain.OrderRecord) error {
	const query = `
		INSERT INTO orders (
			id, market_id, side, kind, status,
			owner_lo, owner_hi, price, quantity_b, quantity_a,
			locked_balance, locked_fee, filled_amount,
			submission_id, placed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13,
			$14, $15
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			filled_amount = EXCLUDED.filled_amount,
			locked_balance = EXCLUDED.locked_balance,
			locked_fee = EXCLUDED.locked_fee`

	_, err := s.pool.Exec(ctx, query,
		int64(rec.ID), int64(rec.MarketID),
		int16(rec.Side), int16(rec.Kind), int16(rec.Status),
		strconv.FormatUint(rec.Owner[0], 10), strconv.FormatUint(rec.Owner[1], 10),
		int64(rec.Price), int64(rec.QuantityB), int64(rec.QuantityA),
		int64(rec.LockedBalance), int64(rec.LockedFee), int64(rec.FilledAmount),
		rec.SubmissionID, rec.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert order %d: %w", rec.ID, err)
	}
	return nil
}

const orderSelectCols = `id, market_id, side, kind, status,
	owner_lo, owner_hi, price, quantity_b, quantity_a,
	locked_balance, locked_fee, filled_amount,
	submission_id, placed_at`

func scanOrderFromRow(scanner interface{ Scan(dest ...any) error }) (domain.OrderRecord, error) {
	var rec domain.OrderRecord
	var id, marketID, price, quantityB, quantityA, lockedBalance, lockedFee, filledAmount int64
	var side, kind, status int16
	var ownerLo, ownerHi string

	err := scanner.Scan(
		&id, &marketID, &side, &kind, &status,
		&ownerLo, &ownerHi, &price, &quantityB, &quantityA,
		&lockedBalance, &lockedFee, &filledAmount,
		&rec.SubmissionID, &rec.PlacedAt,
	)
	if err != nil {
		return domain.OrderRecord{}, err
	}

	rec.ID = uint64(id)
	rec.MarketID = uint64(marketID)
	rec.Side = domain.Side(side)
	rec.Kind = domain.Kind(kind)
	rec.Status = domain.Status(status)
	rec.Price = uint64(price)
	rec.QuantityB = uint64(quantityB)
	rec.QuantityA = uint64(quantityA)
	rec.LockedBalance = uint64(lockedBalance)
	rec.LockedFee = uint64(lockedFee)
	rec.FilledAmount = uint64(filledAmount)

	lo, err := strconv.ParseUint(ownerLo, 10, 64)
	if err != nil {
		return domain.OrderRecord{}, fmt.Errorf("bad owner_lo %q: %w", ownerLo, err)
	}
	hi, err := strconv.ParseUint(ownerHi, 10, 64)
	if err != nil {
		return domain.OrderRecord{}, fmt.Errorf("bad owner_hi %q: %w", ownerHi, err)
	}
	rec.Owner = domain.PlayerID{lo, hi}

	return rec, nil
}

func scanOrderRows(rows pgx.Rows) ([]domain.OrderRecord, error) {
	var recs []domain.OrderRecord
	for rows.Next() {
		rec, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Get retrieves a single mirrored order by its ledger id.
func (s *OrderStore) Get(ctx context.Context, id uint64) (domain.OrderRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE id = $1`, int64(id))

	rec, err := scanOrderFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrderRecord{}, domain.ErrNotFound
		}
		return domain.OrderRecord{}, fmt.Errorf("postgres: get order %d: %w", id, err)
	}
	return rec, nil
}

// ListByMarket returns the most recent mirrored orders for one market.
func (s *OrderStore) ListByMarket(ctx context.Context, marketID uint64, limit int) ([]domain.OrderRecord, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE market_id = $1 ORDER BY placed_at DESC`
	args := []any{int64(marketID)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders by market %d: %w", marketID, err)
	}
	defer rows.Close()

	recs, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders by market %d: %w", marketID, err)
	}
	return recs, nil
}

// ListBefore returns all mirrored orders placed before the cutoff, oldest
// first, for archival.
func (s *OrderStore) ListBefore(ctx context.Context, before time.Time) ([]domain.OrderRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE placed_at < $1 ORDER BY placed_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders before %s: %w", before, err)
	}
	defer rows.Close()

	recs, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan orders before %s: %w", before, err)
	}
	return recs, nil
}
