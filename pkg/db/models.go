package db

import "time"

// Trade is one row of the append-only trades table.
type Trade struct {
	ID        string
	Exchange  string
	Symbol    string
	Side      string
	Amount    float64
	Price     float64
	Fee       float64
	Mode      string
	Raw       string
	CreatedAt time.Time
}

// Position is one open paper position row.
type Position struct {
	ID         int64
	Symbol     string
	Exchange   string
	Side       string
	Amount     float64
	EntryPrice float64
	CreatedAt  time.Time
}
