package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS trades (
    id UUID PRIMARY KEY,
    exchange TEXT NOT NULL,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    amount DOUBLE PRECISION NOT NULL,
    price DOUBLE PRECISION NOT NULL DEFAULT 0,
    fee DOUBLE PRECISION NOT NULL DEFAULT 0,
    mode TEXT NOT NULL,
    raw JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_trades_created_at ON trades(created_at);

CREATE TABLE IF NOT EXISTS positions (
    id BIGSERIAL PRIMARY KEY,
    symbol TEXT NOT NULL,
    exchange TEXT NOT NULL,
    side TEXT NOT NULL,
    amount DOUBLE PRECISION NOT NULL,
    entry_price DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol);
`

// Postgres stores trades and positions through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Backend = (*Postgres)(nil)

// OpenPostgres connects, pings and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) InsertTrade(ctx context.Context, t TradeRecord) error {
	id := t.ID
	if id == "" {
		id = uuid.NewString()
	}
	raw := t.Raw
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO trades (id, exchange, symbol, side, amount, price, fee, mode, raw, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()))`,
		id, t.Exchange, t.Symbol, t.Side, t.Amount, t.Price, t.Fee, t.Mode, []byte(raw), nullTime(t),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (p *Postgres) RecentTrades(ctx context.Context, limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, exchange, symbol, side, amount, price, fee, mode, COALESCE(raw, '{}'::jsonb), created_at
		FROM trades
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TradeRecord, error) {
		var t TradeRecord
		var raw []byte
		err := row.Scan(&t.ID, &t.Exchange, &t.Symbol, &t.Side, &t.Amount, &t.Price, &t.Fee, &t.Mode, &raw, &t.Timestamp)
		t.Raw = raw
		return t, err
	})
}

func (p *Postgres) InsertPosition(ctx context.Context, pos Position) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO positions (symbol, exchange, side, amount, entry_price)
		VALUES ($1, $2, $3, $4, $5)`,
		pos.Symbol, pos.Exchange, pos.Side, pos.Amount, pos.EntryPrice)
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

func (p *Postgres) ListPositions(ctx context.Context, symbol string) ([]Position, error) {
	query := `SELECT id, symbol, exchange, side, amount, entry_price FROM positions`
	var args []any
	if symbol != "" {
		query += ` WHERE symbol = $1`
		args = append(args, symbol)
	}
	query += ` ORDER BY id`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Position, error) {
		var pos Position
		var id int64
		err := row.Scan(&id, &pos.Symbol, &pos.Exchange, &pos.Side, &pos.Amount, &pos.EntryPrice)
		pos.ID = strconv.FormatInt(id, 10)
		return pos, err
	})
}

func (p *Postgres) DeletePosition(ctx context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM positions WHERE id = $1`, n)
	if err != nil {
		return fmt.Errorf("delete position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete position %s: %w", id, pgx.ErrNoRows)
	}
	return nil
}

func (p *Postgres) UpdatePositionAmount(ctx context.Context, id string, amount float64) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `UPDATE positions SET amount = $2 WHERE id = $1`, n, amount)
	if err != nil {
		return fmt.Errorf("update position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update position %s: %w", id, pgx.ErrNoRows)
	}
	return nil
}

func nullTime(t TradeRecord) any {
	if t.Timestamp.IsZero() {
		return nil
	}
	return t.Timestamp
}
