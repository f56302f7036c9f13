package order

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"trading-agent/internal/events"
	"trading-agent/internal/store"
	"trading-agent/pkg/exchanges/common"
	"trading-agent/pkg/i18n"
)

// dispatch sends the order to the primary venue. An exchange failure ends the
// request with StatusError; it is reported, never retried.
func (e *Executor) dispatch(ctx context.Context, req Request, side common.Side) Result {
	adapter, _ := e.venues.Primary()

	ack, err := adapter.PlaceMarketOrder(ctx, req.Symbol, side, req.Amount)
	if err != nil {
		log.Printf(i18n.Get("OrderFailed"), adapter.Name(), req.Symbol, req.Side, req.Amount, err)
		e.metrics.ObserveExchangeFailure(adapter.Name(), "create_order")
		e.bus.Publish(events.EventOrderFailed, map[string]any{
			"exchange": adapter.Name(), "symbol": req.Symbol, "side": req.Side, "amount": req.Amount, "error": err.Error(),
		})
		return Result{Status: StatusError, Error: err.Error()}
	}

	fields := map[string]any{}
	if json.Valid(ack.Raw) {
		fields["order"] = ack.Raw
	}

	amount := req.Amount
	if ack.FilledAmount > 0 {
		amount = ack.FilledAmount
	}
	rec := store.TradeRecord{
		ID:        uuid.NewString(),
		Exchange:  adapter.Name(),
		Symbol:    req.Symbol,
		Side:      string(side),
		Amount:    amount,
		Price:     ack.AchievedPrice(),
		Fee:       ack.Fee,
		Mode:      string(ModeLive),
		Timestamp: e.now(),
		Raw:       e.stamp(req, fields),
	}
	e.ledger.RecordTrade(context.WithoutCancel(ctx), rec)

	log.Printf(i18n.Get("OrderExecuted"), adapter.Name(), rec.Symbol, rec.Side, rec.Amount, rec.Price, ack.ExchangeOrderID)
	e.bus.Publish(events.EventOrderFilled, rec)
	return Result{
		Status: StatusOK,
		Fill:   &rec,
		Order: &ExchangeOrder{
			Exchange: adapter.Name(),
			ID:       ack.ExchangeOrderID,
			Status:   ack.Status,
			Average:  rec.Price,
			Filled:   ack.FilledAmount,
			Raw:      ack.Raw,
		},
	}
}
