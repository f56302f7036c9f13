package coinbase

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trading-agent/pkg/exchanges/common"
)

const Name = "coinbase"

// Config holds Coinbase Exchange credentials and transport settings.
type Config struct {
	APIKey     string
	APISecret  string // base64 encoded, as issued
	Passphrase string
	Sandbox    bool
	Timeout    time.Duration
	BaseURL    string
}

// Client is a Coinbase Exchange adapter.
type Client struct {
	cfg         Config
	baseURL     string
	httpClient  *http.Client
	timeSync    *common.TimeSync
	rateLimiter *common.RateLimiter
}

var _ common.Adapter = (*Client)(nil)

func New(cfg Config) *Client {
	base := "https://api.exchange.coinbase.com"
	if cfg.Sandbox {
		base = "https://api-public.sandbox.exchange.coinbase.com"
	}
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	c.timeSync = common.NewTimeSync(c.GetServerTime)
	// public endpoints allow 10 req/s; no weight header
	c.rateLimiter = common.NewRateLimiter(10, 10, 0, time.Second)
	return c
}

func (c *Client) Name() string { return Name }

func (c *Client) CanTrade() bool { return c.cfg.APIKey != "" && c.cfg.APISecret != "" }

func (c *Client) FetchLastPrice(ctx context.Context, symbol, timeframe string) (float64, bool) {
	candles := c.FetchCandles(ctx, symbol, timeframe, 1)
	if len(candles) == 0 {
		return 0, false
	}
	return candles[len(candles)-1].Close, true
}

// FetchCandles returns up to limit candles, oldest first. Coinbase answers
// newest first as [time, low, high, open, close, volume].
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) []common.Candle {
	bar, err := common.TimeframeDuration(timeframe)
	if err != nil {
		log.Printf("coinbase: %v", err)
		return nil
	}
	params := url.Values{}
	params.Set("granularity", strconv.Itoa(int(bar.Seconds())))
	if limit > 0 {
		end := time.Now().UTC()
		// one extra bar covers the still-forming candle
		start := end.Add(-time.Duration(limit+1) * bar)
		params.Set("start", start.Format(time.RFC3339))
		params.Set("end", end.Format(time.RFC3339))
	}

	body, err := c.do(ctx, http.MethodGet, "/products/"+ProductID(symbol)+"/candles?"+params.Encode(), nil, false)
	if err != nil {
		log.Printf("coinbase: candles %s %s failed: %v", symbol, timeframe, err)
		return nil
	}

	var raw [][]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		log.Printf("coinbase: decode candles %s: %v", symbol, err)
		return nil
	}

	candles := make([]common.Candle, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		row := raw[i]
		if len(row) < 6 {
			continue
		}
		candles = append(candles, common.Candle{
			OpenTime: time.Unix(int64(row[0]), 0),
			Low:      row[1],
			High:     row[2],
			Open:     row[3],
			Close:    row[4],
			Volume:   row[5],
		})
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles
}

type order struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Price         string `json:"price"`
	FilledSize    string `json:"filled_size"`
	ExecutedValue string `json:"executed_value"`
	FillFees      string `json:"fill_fees"`
	DoneReason    string `json:"done_reason"`
	Settled       bool   `json:"settled"`
}

// PlaceMarketOrder submits a market order sized in base currency. A pending
// acknowledgement is re-read once to pick up the fill.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side common.Side, amount float64) (common.OrderResult, error) {
	if !c.CanTrade() {
		return common.OrderResult{}, common.NewExchangeError(Name, "create_order", common.ErrNoCredentials)
	}

	payload, _ := json.Marshal(map[string]string{
		"type":       "market",
		"side":       string(side),
		"product_id": ProductID(symbol),
		"size":       strconv.FormatFloat(amount, 'f', -1, 64),
	})
	body, err := c.do(ctx, http.MethodPost, "/orders", payload, true)
	if err != nil {
		return common.OrderResult{}, common.NewExchangeError(Name, "create_order", err)
	}

	var o order
	if err := json.Unmarshal(body, &o); err != nil {
		return common.OrderResult{}, common.NewExchangeError(Name, "create_order", fmt.Errorf("decode order: %w", err))
	}
	if o.Status == "rejected" {
		return common.OrderResult{}, &common.ExchangeError{Exchange: Name, Op: "create_order", Reason: "order rejected"}
	}

	if parse(o.FilledSize) == 0 && o.ID != "" {
		if again, err := c.do(ctx, http.MethodGet, "/orders/"+o.ID, nil, true); err == nil {
			var filled order
			if json.Unmarshal(again, &filled) == nil && filled.ID != "" {
				o, body = filled, again
			}
		} else {
			log.Printf("coinbase: re-read order %s: %v", o.ID, err)
		}
	}

	res := common.OrderResult{
		ExchangeOrderID: o.ID,
		Status:          o.Status,
		Price:           parse(o.Price),
		FilledAmount:    parse(o.FilledSize),
		Fee:             parse(o.FillFees),
		Raw:             json.RawMessage(body),
	}
	if res.FilledAmount > 0 {
		res.AvgPrice = parse(o.ExecutedValue) / res.FilledAmount
	}
	return res, nil
}

// ValidateCredentials lists accounts as a harmless private read.
func (c *Client) ValidateCredentials(ctx context.Context) error {
	if !c.CanTrade() {
		return common.ErrNoCredentials
	}
	body, err := c.do(ctx, http.MethodGet, "/accounts", nil, true)
	if err != nil {
		return err
	}
	var accounts []struct {
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(body, &accounts); err != nil {
		return fmt.Errorf("decode accounts: %w", err)
	}
	sample := make([]string, 0, 5)
	for _, a := range accounts {
		if len(sample) == 5 {
			break
		}
		sample = append(sample, a.Currency)
	}
	log.Printf("coinbase: balance keys OK (sample assets: %v)", sample)
	return nil
}

// GetServerTime returns the exchange clock in ms.
func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	body, err := c.do(ctx, http.MethodGet, "/time", nil, false)
	if err != nil {
		return 0, err
	}
	var res struct {
		Epoch float64 `json:"epoch"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, err
	}
	return int64(res.Epoch * 1000), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, signed bool) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signed {
		c.timeSync.Ensure(ctx)
		ts := strconv.FormatInt(c.timeSync.Now()/1000, 10)
		sig, err := sign(c.cfg.APISecret, ts+method+path+string(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("CB-ACCESS-KEY", c.cfg.APIKey)
		req.Header.Set("CB-ACCESS-SIGN", sig)
		req.Header.Set("CB-ACCESS-TIMESTAMP", ts)
		req.Header.Set("CB-ACCESS-PASSPHRASE", c.cfg.Passphrase)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("status %d: %s", res.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("status %d: %s", res.StatusCode, string(data))
	}
	return data, nil
}

// sign computes base64(HMAC-SHA256(base64decode(secret), prehash)).
func sign(secret, prehash string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}
	h := hmac.New(sha256.New, key)
	h.Write([]byte(prehash))
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// ProductID converts "BTC/USDT" to "BTC-USDT".
func ProductID(symbol string) string {
	base, quote := common.SplitSymbol(symbol)
	if quote == "" {
		return base
	}
	return base + "-" + quote
}

func parse(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
