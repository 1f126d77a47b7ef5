package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketglass/footprintd/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// InsertTrades inserts the raw trades of one finished window using pgx.Batch.
func (s *TradeStore) InsertTrades(ctx context.Context, symbol string, start time.Time, trades []domain.TradeEvent) error {
	if len(trades) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO trades (symbol, window_start, price, quantity, seller_initiated, traded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, t := range trades {
		batch.Queue(query, symbol, start, t.Price, t.Quantity, t.SellerInitiated, t.Time)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert trade batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListBefore returns all trades executed strictly before the cutoff, oldest
// first. Used by the cold-storage archiver.
func (s *TradeStore) ListBefore(ctx context.Context, symbol string, before time.Time) ([]domain.StoredTrade, error) {
	const query = `
		SELECT symbol, window_start, price, quantity, seller_initiated, traded_at
		FROM trades
		WHERE symbol = $1 AND traded_at < $2
		ORDER BY traded_at ASC`
	rows, err := s.pool.Query(ctx, query, symbol, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before: %w", err)
	}
	defer rows.Close()

	var out []domain.StoredTrade
	for rows.Next() {
		var t domain.StoredTrade
		if err := rows.Scan(&t.Symbol, &t.WindowStart, &t.Price, &t.Quantity, &t.SellerInitiated, &t.Time); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteBefore removes trades executed strictly before the cutoff and returns
// the number deleted.
func (s *TradeStore) DeleteBefore(ctx context.Context, symbol string, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM trades WHERE symbol = $1 AND traded_at < $2`,
		symbol, before,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
