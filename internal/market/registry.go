package market

import (
	"context"
	"fmt"
	"log"
	"time"

	"trading-agent/internal/events"
	"trading-agent/internal/monitor"
	"trading-agent/pkg/exchanges/common"
)

// Registry is the fixed, ordered set of exchange connections built at
// startup. Market data reads walk the list in order; live orders go to the
// primary only.
type Registry struct {
	adapters []common.Adapter
	primary  common.Adapter
	book     *Book
	bus      *events.Bus
	metrics  *monitor.Metrics
}

// NewRegistry orders adapters as given. primary names the live venue; empty
// selects the first adapter that can trade. Naming an adapter that is absent
// or has no credentials is an error.
func NewRegistry(adapters []common.Adapter, primary string, bus *events.Bus, metrics *monitor.Metrics) (*Registry, error) {
	r := &Registry{
		adapters: append([]common.Adapter(nil), adapters...),
		book:     NewBook(),
		bus:      bus,
		metrics:  metrics,
	}
	for _, a := range r.adapters {
		if primary == "" && a.CanTrade() {
			r.primary = a
			break
		}
		if primary != "" && a.Name() == primary {
			if !a.CanTrade() {
				return nil, fmt.Errorf("primary exchange %q has no credentials", primary)
			}
			r.primary = a
			break
		}
	}
	if primary != "" && r.primary == nil {
		return nil, fmt.Errorf("primary exchange %q is not configured", primary)
	}
	return r, nil
}

// ValidateCredentials runs the best-effort key check on every credentialed
// adapter. Failures are logged and never stop startup.
func (r *Registry) ValidateCredentials(ctx context.Context) {
	for _, a := range r.adapters {
		if !a.CanTrade() {
			continue
		}
		if err := a.ValidateCredentials(ctx); err != nil {
			log.Printf("market: key validation for %s failed: %v", a.Name(), err)
			r.metrics.ObserveExchangeFailure(a.Name(), "validate")
		}
	}
}

// LastPrice returns the first price any adapter reports and records it in
// the book.
func (r *Registry) LastPrice(ctx context.Context, symbol, timeframe string) (float64, bool) {
	for _, a := range r.adapters {
		price, ok := a.FetchLastPrice(ctx, symbol, timeframe)
		if !ok {
			r.metrics.ObserveExchangeFailure(a.Name(), "last_price")
			continue
		}
		r.Observe(symbol, price, a.Name())
		return price, true
	}
	return 0, false
}

// Candles returns the first non-empty series, oldest first.
func (r *Registry) Candles(ctx context.Context, symbol, timeframe string, limit int) []common.Candle {
	for _, a := range r.adapters {
		candles := a.FetchCandles(ctx, symbol, timeframe, limit)
		if len(candles) > 0 {
			return candles
		}
		r.metrics.ObserveExchangeFailure(a.Name(), "candles")
	}
	return nil
}

// Primary returns the live order venue, if any adapter can trade.
func (r *Registry) Primary() (common.Adapter, bool) {
	return r.primary, r.primary != nil
}

// Connected lists the credentialed exchange connections in priority order.
func (r *Registry) Connected() []string {
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		if a.CanTrade() {
			names = append(names, a.Name())
		}
	}
	return names
}

func (r *Registry) Book() *Book { return r.book }

// CachedPrice returns the last price recorded for symbol without fetching.
func (r *Registry) CachedPrice(symbol string) (float64, bool) {
	q, ok := r.book.Get(symbol)
	return q.Price, ok
}

// Observe records a price seen by any source: a poll or a stream.
func (r *Registry) Observe(symbol string, price float64, source string) {
	r.book.Set(symbol, price, source)
	r.metrics.SetLastPrice(symbol, price)
	r.bus.Publish(events.EventPriceTick, events.PriceTick{Symbol: symbol, Price: price, Source: source, At: time.Now().UTC()})
}
