// Package markettest provides an in-memory exchange adapter for tests.
package markettest

import (
	"context"
	"encoding/json"
	"sync"

	"trading-agent/pkg/exchanges/common"
)

// Order is one PlaceMarketOrder call seen by the fake.
type Order struct {
	Symbol string
	Side   common.Side
	Amount float64
}

// Adapter is a scripted common.Adapter. Zero values mean "no data".
type Adapter struct {
	ExchangeName string
	Keys         bool
	Price        float64
	HasPrice     bool
	Series       []common.Candle
	Fill         common.OrderResult
	OrderErr     error
	ValidateErr  error

	mu          sync.Mutex
	priceCalls  int
	candleCalls int
	orders      []Order
}

var _ common.Adapter = (*Adapter)(nil)

func (a *Adapter) Name() string {
	if a.ExchangeName == "" {
		return "fake"
	}
	return a.ExchangeName
}

func (a *Adapter) CanTrade() bool { return a.Keys }

func (a *Adapter) FetchLastPrice(context.Context, string, string) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.priceCalls++
	return a.Price, a.HasPrice
}

func (a *Adapter) FetchCandles(_ context.Context, _ string, _ string, limit int) []common.Candle {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.candleCalls++
	out := a.Series
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return append([]common.Candle(nil), out...)
}

func (a *Adapter) PlaceMarketOrder(_ context.Context, symbol string, side common.Side, amount float64) (common.OrderResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orders = append(a.orders, Order{Symbol: symbol, Side: side, Amount: amount})
	if a.OrderErr != nil {
		return common.OrderResult{}, a.OrderErr
	}
	res := a.Fill
	if res.Raw == nil {
		res.Raw = json.RawMessage(`{"fake":true}`)
	}
	return res, nil
}

func (a *Adapter) ValidateCredentials(context.Context) error { return a.ValidateErr }

// Calls reports how many price reads, candle reads and orders happened.
func (a *Adapter) Calls() (price, candles, orders int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.priceCalls, a.candleCalls, len(a.orders)
}

// Orders returns a copy of the placed orders.
func (a *Adapter) Orders() []Order {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Order(nil), a.orders...)
}

// Closes builds a candle series from closing prices.
func Closes(closes ...float64) []common.Candle {
	out := make([]common.Candle, len(closes))
	for i, c := range closes {
		out[i] = common.Candle{Open: c, High: c, Low: c, Close: c}
	}
	return out
}
