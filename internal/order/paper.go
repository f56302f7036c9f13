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

const paperExchange = "paper"

// simulate fills at the last observed price (0 when none) and applies the
// position policy. Bookkeeping outlives the caller's context.
func (e *Executor) simulate(ctx context.Context, req Request, side common.Side) Result {
	price, ok := e.venues.LastPrice(ctx, req.Symbol, e.cfg.PriceTimeframe)
	if !ok {
		log.Printf(i18n.Get("FillPriceZeroFallback"), req.Symbol)
		price = 0
	}

	raw := e.stamp(req, map[string]any{"simulated": true})
	rec := store.TradeRecord{
		ID:        uuid.NewString(),
		Exchange:  paperExchange,
		Symbol:    req.Symbol,
		Side:      string(side),
		Amount:    req.Amount,
		Price:     price,
		Fee:       0,
		Mode:      string(ModePaper),
		Timestamp: e.now(),
		Raw:       raw,
	}

	bookCtx := context.WithoutCancel(ctx)
	e.ledger.RecordTrade(bookCtx, rec)
	e.applyPosition(bookCtx, rec)

	log.Printf(i18n.Get("OrderSimulated"), rec.Symbol, rec.Side, rec.Amount, rec.Price)
	e.bus.Publish(events.EventOrderSimulated, rec)
	return Result{Status: StatusSimulated, Fill: &rec}
}

// stamp builds a trade's raw payload: who placed it, from which agent
// instance, plus the path-specific fields.
func (e *Executor) stamp(req Request, fields map[string]any) json.RawMessage {
	payload := map[string]any{"instance": e.cfg.Instance, "source": req.Source}
	if req.Operator != "" {
		payload["operator"] = req.Operator
	}
	for k, v := range fields {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

func (e *Executor) applyPosition(ctx context.Context, rec store.TradeRecord) {
	change := events.PositionChange{Symbol: rec.Symbol, Amount: rec.Amount, Price: rec.Price}

	switch {
	case rec.Side == string(common.SideBuy):
		e.ledger.InsertPosition(ctx, store.Position{
			Symbol:     rec.Symbol,
			Exchange:   paperExchange,
			Side:       rec.Side,
			Amount:     rec.Amount,
			EntryPrice: rec.Price,
		})
		change.Action = "opened"
	case e.cfg.Policy == ProportionalReduce:
		removed, unmatched := e.ledger.ReducePositionsForSymbol(ctx, rec.Symbol, rec.Amount)
		if unmatched > 0 {
			log.Printf(i18n.Get("SellExceedsPositions"), rec.Symbol, unmatched)
		}
		change.Action = "reduced"
		change.Removed = removed
	default:
		change.Action = "closed"
		change.Removed = e.ledger.ClosePositionsForSymbol(ctx, rec.Symbol)
	}
	e.bus.Publish(events.EventPositionChange, change)
}
