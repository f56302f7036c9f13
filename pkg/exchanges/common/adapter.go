package common

import (
	"context"
	"errors"
	"fmt"
)

// Adapter abstracts one configured exchange connection.
//
// Market data reads never fail to the caller: transport or API problems are
// logged by the adapter and reported as an absent price or an empty series.
// Order placement fails with *ExchangeError.
type Adapter interface {
	Name() string
	// CanTrade reports whether the adapter holds credentials for order placement.
	CanTrade() bool
	FetchLastPrice(ctx context.Context, symbol, timeframe string) (float64, bool)
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) []Candle
	PlaceMarketOrder(ctx context.Context, symbol string, side Side, amount float64) (OrderResult, error)
	// ValidateCredentials performs one harmless private read.
	ValidateCredentials(ctx context.Context) error
}

// ErrNoCredentials is returned by private calls on a keyless adapter.
var ErrNoCredentials = errors.New("api key/secret required")

// ExchangeError is a transport, auth or rejection failure during a private call.
type ExchangeError struct {
	Exchange string
	Op       string
	Reason   string
	Err      error
}

func (e *ExchangeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s: %s", e.Exchange, e.Op, e.Reason)
	}
	return fmt.Sprintf("%s %s: %v", e.Exchange, e.Op, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// NewExchangeError wraps err; reason defaults to err's message.
func NewExchangeError(exchange, op string, err error) *ExchangeError {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return &ExchangeError{Exchange: exchange, Op: op, Reason: reason, Err: err}
}
