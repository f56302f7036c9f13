package strategy

import (
	"context"
	"errors"
	"fmt"
	"log"

	"trading-agent/internal/events"
	"trading-agent/internal/monitor"
	"trading-agent/internal/order"
	"trading-agent/pkg/exchanges/common"
	"trading-agent/pkg/i18n"
)

// Market is the read side the runner needs.
type Market interface {
	LastPrice(ctx context.Context, symbol, timeframe string) (float64, bool)
	Candles(ctx context.Context, symbol, timeframe string, limit int) []common.Candle
}

// Submitter places orders (order.Executor).
type Submitter interface {
	Submit(ctx context.Context, req order.Request) (order.Result, error)
}

// Outcome of one cycle.
type Outcome string

const (
	OutcomeNoPrice   Outcome = "skipped_no_price"
	OutcomeNoData    Outcome = "skipped_no_data"
	OutcomeNoSignal  Outcome = "no_signal"
	OutcomeSubmitted Outcome = "submitted"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "order_failed"
)

// Runner performs one strategy cycle against the market and the executor.
type Runner struct {
	settings Settings
	market   Market
	orders   Submitter
	bus      *events.Bus
	metrics  *monitor.Metrics
}

func NewRunner(settings Settings, market Market, orders Submitter, bus *events.Bus, metrics *monitor.Metrics) *Runner {
	return &Runner{settings: settings, market: market, orders: orders, bus: bus, metrics: metrics}
}

func (r *Runner) Settings() Settings { return r.settings }

// RunOnce fetches the current price and recent candles, evaluates the
// crossover and submits an order on a signal. Missing data and risk
// rejections are outcomes, not errors; only an unexpected executor error is
// returned.
func (r *Runner) RunOnce(ctx context.Context) (Outcome, error) {
	s := r.settings
	price, ok := r.market.LastPrice(ctx, s.Symbol, s.Timeframe)
	if !ok {
		log.Printf(i18n.Get("StrategyNoPrice"), s.Symbol)
		r.metrics.ObserveSignal(string(OutcomeNoPrice))
		return OutcomeNoPrice, nil
	}

	candles := r.market.Candles(ctx, s.Symbol, s.Timeframe, s.Params.Window())
	if len(candles) < s.Params.Long {
		log.Printf(i18n.Get("StrategyNotEnoughData"), s.Symbol, len(candles), s.Params.Long)
		r.metrics.ObserveSignal(string(OutcomeNoData))
		return OutcomeNoData, nil
	}

	signal, cross := Evaluate(common.Closes(candles), s.Params)
	r.metrics.ObserveSignal(string(signal))
	if signal == None {
		return OutcomeNoSignal, nil
	}

	log.Printf(i18n.Get("StrategySignal"), signal, s.Symbol, price, cross.Short, cross.Long)
	r.bus.Publish(events.EventStrategySignal, events.Signal{
		Symbol: s.Symbol,
		Side:   string(signal),
		Short:  cross.Short,
		Long:   cross.Long,
		Price:  price,
	})

	res, err := r.orders.Submit(ctx, order.Request{
		Symbol: s.Symbol,
		Side:   string(signal),
		Amount: s.OrderSize,
		Source: "strategy",
	})
	var rej *order.RejectionError
	switch {
	case errors.As(err, &rej):
		return OutcomeRejected, nil
	case err != nil:
		return OutcomeFailed, fmt.Errorf("submit %s %s: %w", signal, s.Symbol, err)
	case res.Status == order.StatusError:
		return OutcomeFailed, nil
	default:
		return OutcomeSubmitted, nil
	}
}
