package events

import (
	"fmt"
	"time"
)

// Event enumerates high-level topics inside the trading agent.
type Event string

const (
	EventPriceTick      Event = "price.tick"
	EventStrategySignal Event = "strategy.signal"
	EventOrderRejected  Event = "order.rejected"
	EventOrderSimulated Event = "order.simulated"
	EventOrderFilled    Event = "order.filled"
	EventOrderFailed    Event = "order.failed"
	EventPositionChange Event = "position.change"
	EventControlChange  Event = "control.change"
	EventLoopFault      Event = "loop.fault"
)

// All lists every topic, in the order the websocket stream subscribes them.
var All = []Event{
	EventPriceTick,
	EventStrategySignal,
	EventOrderRejected,
	EventOrderSimulated,
	EventOrderFilled,
	EventOrderFailed,
	EventPositionChange,
	EventControlChange,
	EventLoopFault,
}

// PriceTick is published whenever a fresh last price is observed.
type PriceTick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// Signal is published when the strategy produces a buy or sell.
type Signal struct {
	Symbol string  `json:"symbol"`
	Side   string  `json:"side"`
	Short  float64 `json:"smaShort"`
	Long   float64 `json:"smaLong"`
	Price  float64 `json:"price"`
}

// PositionChange describes a paper position mutation.
type PositionChange struct {
	Symbol  string  `json:"symbol"`
	Action  string  `json:"action"` // opened | closed | reduced
	Amount  float64 `json:"amount"`
	Price   float64 `json:"price"`
	Removed int     `json:"removed,omitempty"`
}

// LoopFault is published when a control loop cycle fails.
type LoopFault struct {
	Error string    `json:"error"`
	At    time.Time `json:"at"`
}

// ControlChange is published after an operator action.
type ControlChange struct {
	Action  string `json:"action"`
	Running bool   `json:"running"`
	Killed  bool   `json:"killed"`
	// Operator is empty when the API runs without authentication.
	Operator string `json:"operator,omitempty"`
}

func (c ControlChange) String() string {
	return fmt.Sprintf("%s (running=%t killed=%t)", c.Action, c.Running, c.Killed)
}
