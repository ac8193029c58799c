package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zkxchange/rollexbot/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Upsert inserts or updates a single market.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			market_id, status, token_a, token_b, last_price, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (market_id) DO UPDATE SET
			status     = EXCLUDED.status,
			last_price = EXCLUDED.last_price,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		int64(m.MarketID), int16(m.Status),
		int32(m.TokenA), int32(m.TokenB), int64(m.LastPrice),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %d: %w", m.MarketID, err)
	}
	return nil
}

const marketSelectCols = `market_id, status, token_a, token_b, last_price`

func scanMarketFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Market, error) {
	var m domain.Market
	var marketID, lastPrice int64
	var status int16
	var tokenA, tokenB int32

	if err := scanner.Scan(&marketID, &status, &tokenA, &tokenB, &lastPrice); err != nil {
		return domain.Market{}, err
	}

	m.MarketID = uint64(marketID)
	m.Status = domain.MarketStatus(status)
	m.TokenA = uint32(tokenA)
	m.TokenB = uint32(tokenB)
	m.LastPrice = uint64(lastPrice)
	return m, nil
}

// Get retrieves a single market by its ledger id.
func (s *MarketStore) Get(ctx context.Context, id uint64) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketSelectCols+` FROM markets WHERE market_id = $1`, int64(id))

	m, err := scanMarketFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrMarketNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

// List returns every mirrored market.
func (s *MarketStore) List(ctx context.Context) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketSelectCols+` FROM markets ORDER BY market_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarketFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}
