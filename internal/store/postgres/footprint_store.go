package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketglass/footprintd/internal/domain"
)

// FootprintStore implements domain.WindowStore using PostgreSQL. Archived
// windows are stored as one JSONB row per window.
type FootprintStore struct {
	pool *pgxpool.Pool
}

// NewFootprintStore creates a FootprintStore backed by the given pool.
func NewFootprintStore(pool *pgxpool.Pool) *FootprintStore {
	return &FootprintStore{pool: pool}
}

// InsertWindow stores one archived window. Re-inserting the same
// (symbol, window_start) is a no-op, so replays after a reconnect cannot
// double-write.
func (s *FootprintStore) InsertWindow(ctx context.Context, symbol string, start time.Time, payload json.RawMessage) error {
	const query = `
		INSERT INTO footprint_windows (symbol, window_start, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, window_start) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, symbol, start, payload); err != nil {
		return fmt.Errorf("postgres: insert window %s %s: %w", symbol, start.Format(time.RFC3339), err)
	}
	return nil
}

// ListBefore returns all windows that started strictly before the cutoff,
// oldest first. Used by the cold-storage archiver.
func (s *FootprintStore) ListBefore(ctx context.Context, symbol string, before time.Time) ([]domain.StoredWindow, error) {
	const query = `
		SELECT symbol, window_start, payload, created_at
		FROM footprint_windows
		WHERE symbol = $1 AND window_start < $2
		ORDER BY window_start ASC`
	rows, err := s.pool.Query(ctx, query, symbol, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list windows before: %w", err)
	}
	defer rows.Close()

	var out []domain.StoredWindow
	for rows.Next() {
		var w domain.StoredWindow
		if err := rows.Scan(&w.Symbol, &w.WindowStart, &w.Payload, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan window: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// DeleteBefore removes windows that started strictly before the cutoff and
// returns the number deleted.
func (s *FootprintStore) DeleteBefore(ctx context.Context, symbol string, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM footprint_windows WHERE symbol = $1 AND window_start < $2`,
		symbol, before,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete windows before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.WindowStore = (*FootprintStore)(nil)
