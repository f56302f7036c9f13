// Package pnl computes the naive realized P&L over recorded trades.
package pnl

import (
	"github.com/shopspring/decimal"

	"trading-agent/internal/store"
)

// Window is how many recent trades the report covers.
const Window = 1000

// Report is the /pnl body. Unrealized is not computed and stays zero.
type Report struct {
	Realized   float64 `json:"realized"`
	Unrealized float64 `json:"unrealized"`
	Trades     int     `json:"trades"`
	Buys       int     `json:"buys"`
	Sells      int     `json:"sells"`
}

// Realized is the sum of sell notionals minus the sum of buy notionals.
// Sums run in decimal so long histories do not drift.
func Realized(trades []store.TradeRecord) Report {
	total := decimal.Zero
	r := Report{Trades: len(trades)}
	for _, t := range trades {
		notional := decimal.NewFromFloat(t.Price).Mul(decimal.NewFromFloat(t.Amount))
		switch t.Side {
		case "sell":
			total = total.Add(notional)
			r.Sells++
		case "buy":
			total = total.Sub(notional)
			r.Buys++
		}
	}
	r.Realized = total.InexactFloat64()
	return r
}
