// Package history persists broadcast trade alerts to PostgreSQL. Writes are
// fire-and-forget from the hub's point of view: a failed insert is logged and
// never blocks or fails a broadcast.
package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"trollbox/internal/protocol"
)

const schema = `
CREATE TABLE IF NOT EXISTS trade_alerts (
	id         TEXT PRIMARY KEY,
	action     TEXT NOT NULL,
	amount     NUMERIC NOT NULL,
	address    TEXT NOT NULL,
	tx_hash    TEXT NOT NULL,
	emoji      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store writes trade alerts to the trade_alerts table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates the store and ensures its table exists.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("create trade_alerts table: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Insert records one broadcast trade alert.
func (s *Store) Insert(ctx context.Context, alert protocol.TradeAlert) error {
	query := `
		INSERT INTO trade_alerts (id, action, amount, address, tx_hash, emoji)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		alert.ID,
		alert.TradeData.Action,
		alert.TradeData.Amount,
		alert.TradeData.Address,
		alert.TradeData.TxHash,
		alert.TradeData.Emoji,
	)
	if err != nil {
		return fmt.Errorf("insert trade alert: %w", err)
	}
	return nil
}

// Count returns the number of persisted alerts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM trade_alerts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trade alerts: %w", err)
	}
	return n, nil
}
