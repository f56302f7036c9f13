package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"trading-agent/pkg/db"
)

// SQLite keeps trades and positions in a local database file.
type SQLite struct {
	db *db.Database
}

var _ Backend = (*SQLite)(nil)

// OpenSQLite opens path and applies migrations.
func OpenSQLite(path string) (*SQLite, error) {
	database, err := db.New(path)
	if err != nil {
		return nil, err
	}
	if err := db.ApplyMigrations(database); err != nil {
		database.Close()
		return nil, err
	}
	return &SQLite{db: database}, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Close() { _ = s.db.Close() }

func (s *SQLite) InsertTrade(ctx context.Context, t TradeRecord) error {
	id := t.ID
	if id == "" {
		id = uuid.NewString()
	}
	raw := string(t.Raw)
	if raw == "" {
		raw = "{}"
	}
	return s.db.InsertTrade(ctx, db.Trade{
		ID: id, Exchange: t.Exchange, Symbol: t.Symbol, Side: t.Side,
		Amount: t.Amount, Price: t.Price, Fee: t.Fee, Mode: t.Mode,
		Raw: raw, CreatedAt: t.Timestamp,
	})
}

func (s *SQLite) RecentTrades(ctx context.Context, limit int) ([]TradeRecord, error) {
	rows, err := s.db.RecentTrades(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]TradeRecord, 0, len(rows))
	for _, r := range rows {
		t := TradeRecord{
			ID: r.ID, Exchange: r.Exchange, Symbol: r.Symbol, Side: r.Side,
			Amount: r.Amount, Price: r.Price, Fee: r.Fee, Mode: r.Mode,
			Timestamp: r.CreatedAt,
		}
		if r.Raw != "" {
			t.Raw = []byte(r.Raw)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *SQLite) InsertPosition(ctx context.Context, p Position) error {
	_, err := s.db.InsertPosition(ctx, db.Position{
		Symbol: p.Symbol, Exchange: p.Exchange, Side: p.Side,
		Amount: p.Amount, EntryPrice: p.EntryPrice,
	})
	return err
}

func (s *SQLite) ListPositions(ctx context.Context, symbol string) ([]Position, error) {
	rows, err := s.db.ListPositions(ctx, symbol)
	if err != nil {
		return nil, err
	}
	out := make([]Position, 0, len(rows))
	for _, r := range rows {
		out = append(out, Position{
			ID: strconv.FormatInt(r.ID, 10), Symbol: r.Symbol, Exchange: r.Exchange,
			Side: r.Side, Amount: r.Amount, EntryPrice: r.EntryPrice,
		})
	}
	return out, nil
}

func (s *SQLite) DeletePosition(ctx context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	return s.db.DeletePosition(ctx, n)
}

func (s *SQLite) UpdatePositionAmount(ctx context.Context, id string, amount float64) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	return s.db.UpdatePositionAmount(ctx, n, amount)
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("position id %q: %w", id, err)
	}
	return n, nil
}
