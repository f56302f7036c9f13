package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"trading-agent/internal/events"
	"trading-agent/internal/monitor"
	"trading-agent/internal/store"
	"trading-agent/pkg/exchanges/common"
	"trading-agent/pkg/i18n"
)

// Gate reports whether trading has been killed.
type Gate interface {
	Killed() bool
}

// Venues is the market side the executor needs: fresh prices for paper
// fills, the cached price for the exposure check and the live venue.
type Venues interface {
	LastPrice(ctx context.Context, symbol, timeframe string) (float64, bool)
	CachedPrice(symbol string) (float64, bool)
	Primary() (common.Adapter, bool)
}

// Ledger is the best-effort bookkeeping surface (store.Gateway).
type Ledger interface {
	RecordTrade(ctx context.Context, t store.TradeRecord)
	InsertPosition(ctx context.Context, p store.Position)
	ClosePositionsForSymbol(ctx context.Context, symbol string) int
	ReducePositionsForSymbol(ctx context.Context, symbol string, amount float64) (int, float64)
}

// Config holds the execution settings fixed at startup.
type Config struct {
	Mode             Mode
	MaxPositionUSD   float64 // <= 0 disables the exposure check
	Policy           Policy
	SerializeSymbols bool
	PriceTimeframe   string // timeframe used to price paper fills
	Instance         string // agent id stamped into raw trade payloads
}

// Executor turns order requests into simulated or real fills and keeps the
// trade and position books.
type Executor struct {
	cfg     Config
	gate    Gate
	venues  Venues
	ledger  Ledger
	bus     *events.Bus
	metrics *monitor.Metrics
	locks   *symbolLocks
	now     func() time.Time
}

func NewExecutor(cfg Config, gate Gate, venues Venues, ledger Ledger, bus *events.Bus, metrics *monitor.Metrics) *Executor {
	if cfg.Mode == "" {
		cfg.Mode = ModePaper
	}
	if cfg.PriceTimeframe == "" {
		cfg.PriceTimeframe = "1m"
	}
	return &Executor{
		cfg:     cfg,
		gate:    gate,
		venues:  venues,
		ledger:  ledger,
		bus:     bus,
		metrics: metrics,
		locks:   newSymbolLocks(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (e *Executor) Mode() Mode { return e.cfg.Mode }

func (e *Executor) Config() Config { return e.cfg }

// Submit runs one request through risk checks and the paper or live path.
//
// A non-nil error means the request was refused (*RejectionError) and no
// exchange or store call was made. Exchange failures in live mode are not
// errors: they come back as a Result with StatusError.
func (e *Executor) Submit(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	side, err := normalize(&req)
	if err != nil {
		e.rejected(req, err)
		return Result{}, err
	}

	if e.cfg.SerializeSymbols {
		unlock := e.locks.Lock(req.Symbol)
		defer unlock()
	}

	if err := e.check(req); err != nil {
		e.rejected(req, err)
		return Result{}, err
	}

	var res Result
	if e.cfg.Mode == ModeLive {
		res = e.dispatch(ctx, req, side)
	} else {
		res = e.simulate(ctx, req, side)
	}
	e.metrics.ObserveOrder(string(e.cfg.Mode), res.Status, time.Since(start))
	return res, nil
}

func normalize(req *Request) (common.Side, error) {
	req.Symbol = strings.TrimSpace(req.Symbol)
	if req.Symbol == "" {
		return "", reject("invalid", ErrInvalidOrder, "symbol is required")
	}
	side, err := common.ParseSide(req.Side)
	if err != nil {
		return "", reject("invalid", ErrInvalidOrder, fmt.Sprintf("side must be buy or sell, got %q", req.Side))
	}
	req.Side = string(side)
	if !(req.Amount > 0) {
		return "", reject("invalid", ErrInvalidOrder, "amount must be positive")
	}
	return side, nil
}

// check applies the rejections in order: killed, live without a venue,
// exposure. It never calls an adapter or the store.
func (e *Executor) check(req Request) error {
	if e.gate != nil && e.gate.Killed() {
		return reject("killed", ErrKilled, "Trading is killed")
	}
	if e.cfg.Mode == ModeLive {
		if _, ok := e.venues.Primary(); !ok {
			return reject("no_exchange", ErrNoExchange, "No exchange keys configured for live mode")
		}
	}
	if e.cfg.MaxPositionUSD > 0 {
		notional := req.Amount * e.priceProxy(req.Symbol)
		if notional > e.cfg.MaxPositionUSD {
			return reject("exposure_limit", ErrExposureLimit,
				fmt.Sprintf("Amount exceeds MAX_POSITION_USD (notional %.2f > %.2f)", notional, e.cfg.MaxPositionUSD))
		}
	}
	return nil
}

// priceProxy is the last cached price, or 1 when the symbol was never priced.
func (e *Executor) priceProxy(symbol string) float64 {
	if price, ok := e.venues.CachedPrice(symbol); ok && price > 0 {
		return price
	}
	return 1
}

func (e *Executor) rejected(req Request, err error) {
	code := "invalid"
	var rej *RejectionError
	if errors.As(err, &rej) {
		code = rej.Code
	}
	log.Printf(i18n.Get("OrderRejected"), req.Symbol, req.Side, req.Amount, err)
	e.metrics.ObserveRejection(code)
	e.bus.Publish(events.EventOrderRejected, map[string]any{
		"symbol": req.Symbol, "side": req.Side, "amount": req.Amount, "reason": err.Error(), "code": code,
	})
}
