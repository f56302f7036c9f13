package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return database
}

func TestMigrationsAreIdempotent(t *testing.T) {
	database := newTestDB(t)
	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("second ApplyMigrations: %v", err)
	}
}

func TestTradesNewestFirst(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, side := range []string{"buy", "sell", "buy"} {
		err := database.InsertTrade(ctx, Trade{
			ID: string(rune('a' + i)), Exchange: "paper", Symbol: "BTC/USDT", Side: side,
			Amount: 1, Price: float64(100 + i), Mode: "paper", Raw: `{}`,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("InsertTrade: %v", err)
		}
	}

	trades, err := database.RecentTrades(ctx, 2)
	if err != nil {
		t.Fatalf("RecentTrades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].Price != 102 || trades[1].Price != 101 {
		t.Errorf("unexpected order: %+v", trades)
	}
}

func TestPositionLifecycle(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	id1, err := database.InsertPosition(ctx, Position{Symbol: "BTC/USDT", Exchange: "paper", Side: "buy", Amount: 0.5, EntryPrice: 100})
	if err != nil {
		t.Fatalf("InsertPosition: %v", err)
	}
	if _, err := database.InsertPosition(ctx, Position{Symbol: "ETH/USDT", Exchange: "paper", Side: "buy", Amount: 1, EntryPrice: 10}); err != nil {
		t.Fatalf("InsertPosition: %v", err)
	}

	btc, err := database.ListPositions(ctx, "BTC/USDT")
	if err != nil || len(btc) != 1 {
		t.Fatalf("ListPositions(BTC) = %v, %v", btc, err)
	}
	if btc[0].ID != id1 || btc[0].EntryPrice != 100 {
		t.Errorf("unexpected position: %+v", btc[0])
	}

	if err := database.UpdatePositionAmount(ctx, id1, 0.2); err != nil {
		t.Fatalf("UpdatePositionAmount: %v", err)
	}
	if err := database.DeletePosition(ctx, id1); err != nil {
		t.Fatalf("DeletePosition: %v", err)
	}
	if err := database.DeletePosition(ctx, id1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	all, err := database.ListPositions(ctx, "")
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	if len(all) != 1 || all[0].Symbol != "ETH/USDT" {
		t.Errorf("unexpected remaining positions: %+v", all)
	}
}
