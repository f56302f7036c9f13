package order

import (
	"encoding/json"
	"fmt"
	"strings"

	"trading-agent/internal/store"
)

// Mode selects simulated or real order placement. Fixed for the process.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePaper, "":
		return ModePaper, nil
	case ModeLive:
		return ModeLive, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want paper or live)", s)
	}
}

// Policy decides what a paper sell does to open positions of its symbol.
type Policy int

const (
	// FullCloseOnAnySell removes every position of the symbol, whatever the
	// sell amount.
	FullCloseOnAnySell Policy = iota
	// ProportionalReduce consumes the sell amount from positions oldest first.
	ProportionalReduce
)

func (p Policy) String() string {
	switch p {
	case ProportionalReduce:
		return "proportional"
	default:
		return "full_close"
	}
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full_close", "full":
		return FullCloseOnAnySell, nil
	case "proportional", "reduce":
		return ProportionalReduce, nil
	default:
		return 0, fmt.Errorf("unknown position policy %q (want full_close or proportional)", s)
	}
}

// Request is one order intent from the strategy or the HTTP surface.
type Request struct {
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"`
	Amount float64 `json:"amount"`
	Source string  `json:"-"` // strategy | manual

	// Operator is the authenticated caller of a manual order, if any.
	Operator string `json:"-"`
}

// Result statuses.
const (
	StatusSimulated = "simulated"
	StatusOK        = "ok"
	StatusError     = "error"
)

// Result is the outcome of an order that passed the risk checks.
type Result struct {
	Status string             `json:"status"`
	Fill   *store.TradeRecord `json:"fill,omitempty"`
	Order  *ExchangeOrder     `json:"order,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// ExchangeOrder summarizes a live exchange acknowledgement.
type ExchangeOrder struct {
	Exchange string          `json:"exchange"`
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Average  float64         `json:"average"`
	Filled   float64         `json:"filled"`
	Raw      json.RawMessage `json:"info,omitempty"`
}
