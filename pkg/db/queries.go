package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("record not found")

// InsertTrade appends a trade row. CreatedAt defaults to now.
func (d *Database) InsertTrade(ctx context.Context, t Trade) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO trades(id, exchange, symbol, side, amount, price, fee, mode, raw, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Exchange, t.Symbol, t.Side, t.Amount, t.Price, t.Fee, t.Mode, t.Raw, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// RecentTrades returns up to limit trades, newest first.
func (d *Database) RecentTrades(ctx context.Context, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, exchange, symbol, side, amount, price, fee, mode, COALESCE(raw, ''), created_at
		FROM trades
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.Exchange, &t.Symbol, &t.Side, &t.Amount, &t.Price, &t.Fee, &t.Mode, &t.Raw, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// InsertPosition adds a position row and returns its id.
func (d *Database) InsertPosition(ctx context.Context, p Position) (int64, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := d.DB.ExecContext(ctx, `
		INSERT INTO positions(symbol, exchange, side, amount, entry_price, created_at)
		VALUES(?, ?, ?, ?, ?, ?)`,
		p.Symbol, p.Exchange, p.Side, p.Amount, p.EntryPrice, p.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert position: %w", err)
	}
	return res.LastInsertId()
}

// ListPositions returns all positions, or only those of symbol when non-empty.
func (d *Database) ListPositions(ctx context.Context, symbol string) ([]Position, error) {
	query := `SELECT id, symbol, exchange, side, amount, entry_price, created_at FROM positions`
	var args []any
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY id`

	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.ID, &p.Symbol, &p.Exchange, &p.Side, &p.Amount, &p.EntryPrice, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// DeletePosition removes one position; ErrNotFound when id is unknown.
func (d *Database) DeletePosition(ctx context.Context, id int64) error {
	res, err := d.DB.ExecContext(ctx, `DELETE FROM positions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete position %d: %w", id, err)
	}
	return expectOne(res)
}

// UpdatePositionAmount sets the remaining amount of one position.
func (d *Database) UpdatePositionAmount(ctx context.Context, id int64, amount float64) error {
	res, err := d.DB.ExecContext(ctx, `UPDATE positions SET amount = ? WHERE id = ?`, amount, id)
	if err != nil {
		return fmt.Errorf("update position %d: %w", id, err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
