// Package sample serves market data from a local OHLCV CSV file so paper
// trading keeps working without exchange connectivity.
package sample

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"trading-agent/pkg/exchanges/common"
)

const Name = "sample"

// DefaultSymbol is the instrument the bundled CSV describes.
const DefaultSymbol = "BTC/USDT"

var errReadOnly = errors.New("sample data source cannot place orders")

// Feed reads `timestamp,open,high,low,close,volume` rows for a single
// symbol. The file is loaded on first use and cached; a failed load is
// retried on the next call.
type Feed struct {
	path   string
	symbol string

	mu      sync.Mutex
	candles []common.Candle
}

var _ common.Adapter = (*Feed)(nil)

// New serves the file at path as the series of symbol. An empty symbol
// means DefaultSymbol.
func New(path, symbol string) *Feed {
	if strings.TrimSpace(symbol) == "" {
		symbol = DefaultSymbol
	}
	return &Feed{path: path, symbol: symbol}
}

// Symbol reports the instrument the file is served as.
func (f *Feed) Symbol() string { return f.symbol }

func (f *Feed) serves(symbol string) bool {
	return normalize(symbol) == normalize(f.symbol)
}

// normalize folds BTC/USDT, btc-usdt and BTCUSDT to one key.
func normalize(symbol string) string {
	r := strings.NewReplacer("/", "", "-", "", "_", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(symbol)))
}

func (f *Feed) Name() string { return Name }

func (f *Feed) CanTrade() bool { return false }

// FetchLastPrice returns the close of the final row. Other symbols have no
// price. The timeframe is ignored.
func (f *Feed) FetchLastPrice(ctx context.Context, symbol, timeframe string) (float64, bool) {
	candles := f.FetchCandles(ctx, symbol, timeframe, 1)
	if len(candles) == 0 {
		return 0, false
	}
	return candles[0].Close, true
}

// FetchCandles returns the last limit rows (all rows when limit <= 0), or
// nothing for a symbol the file does not describe.
func (f *Feed) FetchCandles(_ context.Context, symbol string, _ string, limit int) []common.Candle {
	if !f.serves(symbol) {
		return nil
	}
	all, err := f.load()
	if err != nil {
		log.Printf("sample: %v", err)
		return nil
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]common.Candle, len(all))
	copy(out, all)
	return out
}

func (f *Feed) PlaceMarketOrder(context.Context, string, common.Side, float64) (common.OrderResult, error) {
	return common.OrderResult{}, common.NewExchangeError(Name, "create_order", errReadOnly)
}

func (f *Feed) ValidateCredentials(context.Context) error { return nil }

func (f *Feed) load() ([]common.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.candles != nil {
		return f.candles, nil
	}
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer file.Close()

	candles, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	f.candles = candles
	return candles, nil
}

// Parse reads an OHLCV CSV with a header row. Timestamps may be unix seconds,
// unix milliseconds or RFC 3339.
func Parse(r io.Reader) ([]common.Candle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range []string{"timestamp", "open", "high", "low", "close", "volume"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var candles []common.Candle
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ts, err := parseTime(rec[idx["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		c := common.Candle{OpenTime: ts}
		fields := []struct {
			col string
			dst *float64
		}{
			{"open", &c.Open}, {"high", &c.High}, {"low", &c.Low}, {"close", &c.Close}, {"volume", &c.Volume},
		}
		for _, fld := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[fld.col]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, fld.col, err)
			}
			*fld.dst = v
		}
		candles = append(candles, c)
	}
	if len(candles) == 0 {
		return nil, errors.New("no rows")
	}
	return candles, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n), nil
		}
		return time.Unix(n, 0), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q", s)
}
