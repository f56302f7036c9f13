package store

import (
	"context"
	"log"
	"math"
	"time"

	"trading-agent/internal/monitor"
	"trading-agent/pkg/i18n"
)

const defaultTimeout = 10 * time.Second

// Gateway wraps a Backend with per-call timeouts and best-effort semantics:
// write failures are logged and counted, never returned. A nil backend turns
// every write into a logged no-op.
type Gateway struct {
	backend Backend
	timeout time.Duration
	metrics *monitor.Metrics
}

func NewGateway(backend Backend, timeout time.Duration, metrics *monitor.Metrics) *Gateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gateway{backend: backend, timeout: timeout, metrics: metrics}
}

func (g *Gateway) Configured() bool { return g != nil && g.backend != nil }

// BackendName returns the backend name or "none".
func (g *Gateway) BackendName() string {
	if !g.Configured() {
		return "none"
	}
	return g.backend.Name()
}

func (g *Gateway) Close() {
	if g.Configured() {
		g.backend.Close()
	}
}

// RecordTrade appends a trade record.
func (g *Gateway) RecordTrade(ctx context.Context, t TradeRecord) {
	if !g.Configured() {
		log.Println(i18n.Get("StoreSkipTrade"))
		return
	}
	err := g.call(ctx, "record_trade", func(ctx context.Context) error {
		return g.backend.InsertTrade(ctx, t)
	})
	if err != nil {
		log.Printf(i18n.Get("StoreTradeFailed"), t.Symbol, t.Side, err)
	}
}

// InsertPosition adds an open position.
func (g *Gateway) InsertPosition(ctx context.Context, p Position) {
	if !g.Configured() {
		log.Println(i18n.Get("StoreSkipPosition"))
		return
	}
	err := g.call(ctx, "insert_position", func(ctx context.Context) error {
		return g.backend.InsertPosition(ctx, p)
	})
	if err != nil {
		log.Printf(i18n.Get("StorePositionFailed"), p.Symbol, err)
	}
}

// ClosePositionsForSymbol reads every position of symbol and deletes each.
// A failed delete is logged and the rest are still attempted. It returns
// how many rows were removed.
func (g *Gateway) ClosePositionsForSymbol(ctx context.Context, symbol string) int {
	if !g.Configured() {
		log.Println(i18n.Get("StoreSkipClose"))
		return 0
	}
	positions, ok := g.positions(ctx, symbol)
	if !ok {
		return 0
	}
	removed := 0
	for _, p := range positions {
		id := p.ID
		err := g.call(ctx, "delete_position", func(ctx context.Context) error {
			return g.backend.DeletePosition(ctx, id)
		})
		if err != nil {
			log.Printf(i18n.Get("StoreDeleteFailed"), id, symbol, err)
			continue
		}
		removed++
	}
	return removed
}

// ReducePositionsForSymbol removes amount from the positions of symbol,
// oldest first: fully consumed rows are deleted, the last one touched is
// shrunk. It returns the number of rows deleted and the amount left unmatched.
func (g *Gateway) ReducePositionsForSymbol(ctx context.Context, symbol string, amount float64) (int, float64) {
	if !g.Configured() {
		log.Println(i18n.Get("StoreSkipClose"))
		return 0, amount
	}
	positions, ok := g.positions(ctx, symbol)
	if !ok {
		return 0, amount
	}
	const eps = 1e-12
	removed := 0
	remaining := amount
	for _, p := range positions {
		if remaining <= eps {
			break
		}
		id := p.ID
		if p.Amount <= remaining+eps {
			err := g.call(ctx, "delete_position", func(ctx context.Context) error {
				return g.backend.DeletePosition(ctx, id)
			})
			if err != nil {
				log.Printf(i18n.Get("StoreDeleteFailed"), id, symbol, err)
				continue
			}
			removed++
			remaining -= p.Amount
			continue
		}
		left := p.Amount - remaining
		err := g.call(ctx, "update_position", func(ctx context.Context) error {
			return g.backend.UpdatePositionAmount(ctx, id, left)
		})
		if err != nil {
			log.Printf(i18n.Get("StoreUpdateFailed"), id, symbol, err)
			continue
		}
		remaining = 0
	}
	return removed, math.Max(remaining, 0)
}

// ListPositions returns all open positions; an empty list when unconfigured
// or unreachable.
func (g *Gateway) ListPositions(ctx context.Context) []Position {
	if !g.Configured() {
		return []Position{}
	}
	positions, ok := g.positions(ctx, "")
	if !ok {
		return []Position{}
	}
	return positions
}

// RecentTrades returns up to limit trades, newest first. Unlike the writes
// it reports failures, ErrNotConfigured included, so readers can tell an
// empty history from a missing one.
func (g *Gateway) RecentTrades(ctx context.Context, limit int) ([]TradeRecord, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	var trades []TradeRecord
	err := g.call(ctx, "recent_trades", func(ctx context.Context) error {
		var err error
		trades, err = g.backend.RecentTrades(ctx, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return trades, nil
}

func (g *Gateway) positions(ctx context.Context, symbol string) ([]Position, bool) {
	var positions []Position
	err := g.call(ctx, "list_positions", func(ctx context.Context) error {
		var err error
		positions, err = g.backend.ListPositions(ctx, symbol)
		return err
	})
	if err != nil {
		log.Printf(i18n.Get("StoreListFailed"), symbol, err)
		return nil, false
	}
	if positions == nil {
		positions = []Position{}
	}
	return positions, true
}

func (g *Gateway) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	start := time.Now()
	err := fn(ctx)
	g.metrics.ObserveStore(op, time.Since(start), err)
	return err
}
