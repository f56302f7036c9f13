package strategy

import (
	"fmt"

	"trading-agent/internal/indicators"
)

// Signal is the crossover decision for the latest candle.
type Signal string

const (
	None Signal = "none"
	Buy  Signal = "buy"
	Sell Signal = "sell"
)

// Params configures the crossover windows.
type Params struct {
	Short  int
	Long   int
	Buffer int // extra candles fetched beyond Long
}

func DefaultParams() Params { return Params{Short: 20, Long: 50, Buffer: 10} }

func (p Params) Validate() error {
	if p.Short <= 0 || p.Long <= 0 {
		return fmt.Errorf("sma windows must be positive (short=%d long=%d)", p.Short, p.Long)
	}
	if p.Short >= p.Long {
		return fmt.Errorf("short window %d must be below long window %d", p.Short, p.Long)
	}
	if p.Buffer < 0 {
		return fmt.Errorf("buffer %d must not be negative", p.Buffer)
	}
	return nil
}

// Window is how many candles one evaluation looks at.
func (p Params) Window() int { return p.Long + p.Buffer }

// Cross holds the averages at the previous and the last close.
type Cross struct {
	PrevShort, PrevLong float64
	Short, Long         float64
}

// Evaluate compares SMA(short) and SMA(long) at the second-to-last and last
// close. Golden cross gives Buy, death cross gives Sell. Both averages need a
// full window at both points, so fewer than Long+1 closes is always None.
func Evaluate(closes []float64, p Params) (Signal, Cross) {
	if w := p.Window(); len(closes) > w {
		closes = closes[len(closes)-w:]
	}
	if len(closes) < p.Long+1 {
		return None, Cross{}
	}

	prev := closes[:len(closes)-1]
	c := Cross{
		PrevShort: indicators.SMA(prev, p.Short),
		PrevLong:  indicators.SMA(prev, p.Long),
		Short:     indicators.SMA(closes, p.Short),
		Long:      indicators.SMA(closes, p.Long),
	}

	switch {
	case c.PrevShort <= c.PrevLong && c.Short > c.Long:
		return Buy, c
	case c.PrevShort >= c.PrevLong && c.Short < c.Long:
		return Sell, c
	default:
		return None, c
	}
}
