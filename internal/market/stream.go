package market

import (
	"context"
	"log"
	"time"

	"trading-agent/pkg/exchanges/common"
)

// TickSource streams trade prices for a symbol.
type TickSource interface {
	Name() string
	StreamPrices(ctx context.Context, symbol string) (<-chan common.Tick, func(), error)
}

// Follow keeps the book fresh from src until ctx ends, reconnecting with a
// doubling backoff capped at maxBackoff.
func (r *Registry) Follow(ctx context.Context, src TickSource, symbol string, maxBackoff time.Duration) {
	if maxBackoff <= 0 {
		maxBackoff = time.Minute
	}
	backoff := time.Second
	for ctx.Err() == nil {
		ticks, stop, err := src.StreamPrices(ctx, symbol)
		if err != nil {
			log.Printf("market: %s stream for %s failed: %v (retry in %v)", src.Name(), symbol, err, backoff)
			r.metrics.ObserveExchangeFailure(src.Name(), "stream")
		} else {
			log.Printf("market: following %s trades for %s", src.Name(), symbol)
			received := 0
			for tick := range ticks {
				r.Observe(symbol, tick.Price, src.Name())
				received++
			}
			stop()
			if received > 0 {
				backoff = time.Second
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
