// Package store is the persistence gateway for trades and paper positions.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotConfigured is returned by reads when no backend is configured.
var ErrNotConfigured = errors.New("store not configured")

// TradeRecord is an immutable fill fact. Never mutated once written.
type TradeRecord struct {
	ID        string          `json:"id,omitempty"`
	Exchange  string          `json:"exchange"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Amount    float64         `json:"amount"`
	Price     float64         `json:"price"`
	Fee       float64         `json:"fee"`
	Mode      string          `json:"mode"`
	Timestamp time.Time       `json:"timestamp"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// Position is an open paper position. ID is assigned by the backend.
type Position struct {
	ID         string  `json:"id,omitempty"`
	Symbol     string  `json:"symbol"`
	Exchange   string  `json:"exchange"`
	Side       string  `json:"side"`
	Amount     float64 `json:"amount"`
	EntryPrice float64 `json:"entry_price"`
}

// Backend is one concrete data store. Unlike Gateway it reports errors.
type Backend interface {
	Name() string
	InsertTrade(ctx context.Context, t TradeRecord) error
	RecentTrades(ctx context.Context, limit int) ([]TradeRecord, error)
	InsertPosition(ctx context.Context, p Position) error
	// ListPositions returns all positions, or those of symbol when non-empty.
	ListPositions(ctx context.Context, symbol string) ([]Position, error)
	DeletePosition(ctx context.Context, id string) error
	UpdatePositionAmount(ctx context.Context, id string, amount float64) error
	Close()
}
