package common

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide normalizes a user supplied side ("BUY", "sell", ...).
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

// Candle is one OHLCV bar. Series are ordered oldest first.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Closes extracts closing prices.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// OrderResult is the exchange acknowledgement of a market order.
type OrderResult struct {
	ExchangeOrderID string
	Status          string
	AvgPrice        float64 // average fill price, 0 when not reported
	Price           float64 // quoted/limit price, 0 when not reported
	FilledAmount    float64
	Fee             float64
	Raw             json.RawMessage
}

// AchievedPrice prefers the average fill, then the quoted price, else 0.
func (r OrderResult) AchievedPrice() float64 {
	if r.AvgPrice > 0 {
		return r.AvgPrice
	}
	if r.Price > 0 {
		return r.Price
	}
	return 0
}

// SplitSymbol splits a unified "BASE/QUOTE" symbol. Symbols already in
// exchange form ("BTCUSDT", "BTC-USD") are returned with an empty quote.
func SplitSymbol(symbol string) (base, quote string) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{"/", "-", "_"} {
		if i := strings.Index(s, sep); i > 0 {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

// TimeframeDuration maps a ccxt style timeframe to its bar length.
func TimeframeDuration(tf string) (time.Duration, error) {
	switch tf {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "6h":
		return 6 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe %q", tf)
	}
}

// Tick is one streamed trade price.
type Tick struct {
	Symbol string
	Price  float64
	Time   time.Time
}
