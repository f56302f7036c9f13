package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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

const Name = "binance"

// Config holds Binance credentials and transport settings.
type Config struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	RecvWindow int64         // ms
	Timeout    time.Duration // per request bound
	BaseURL    string        // overrides the venue URL (tests)
}

// Client is a Binance spot adapter.
type Client struct {
	cfg         Config
	baseURL     string
	httpClient  *http.Client
	timeSync    *common.TimeSync
	rateLimiter *common.RateLimiter
}

var _ common.Adapter = (*Client)(nil)

func New(cfg Config) *Client {
	base := "https://api.binance.com"
	if cfg.Testnet {
		base = "https://testnet.binance.vision"
	}
	if cfg.BaseURL != "" {
		base = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	client.timeSync = common.NewTimeSync(client.GetServerTime)
	// 1200 weight/min for spot; 10 req/s client side mirrors ccxt's enableRateLimit
	client.rateLimiter = common.NewRateLimiter(10, 10, 1200, time.Minute)
	return client
}

func (c *Client) Name() string { return Name }

func (c *Client) CanTrade() bool { return c.cfg.APIKey != "" && c.cfg.APISecret != "" }

// FetchLastPrice returns the close of the most recent kline.
func (c *Client) FetchLastPrice(ctx context.Context, symbol, timeframe string) (float64, bool) {
	candles := c.FetchCandles(ctx, symbol, timeframe, 1)
	if len(candles) == 0 {
		return 0, false
	}
	return candles[len(candles)-1].Close, true
}

// FetchCandles fetches recent klines from the public endpoint, oldest first.
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) []common.Candle {
	params := url.Values{}
	params.Set("symbol", MarketSymbol(symbol))
	params.Set("interval", timeframe)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.doPublic(ctx, "/api/v3/klines", params)
	if err != nil {
		log.Printf("binance: klines %s %s failed: %v", symbol, timeframe, err)
		return nil
	}

	var raw [][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		log.Printf("binance: decode klines %s: %v", symbol, err)
		return nil
	}

	candles := make([]common.Candle, 0, len(raw))
	for _, item := range raw {
		if len(item) < 6 {
			continue
		}
		candles = append(candles, common.Candle{
			OpenTime: time.UnixMilli(toInt64(item[0])),
			Open:     toFloat(item[1]),
			High:     toFloat(item[2]),
			Low:      toFloat(item[3]),
			Close:    toFloat(item[4]),
			Volume:   toFloat(item[5]),
		})
	}
	return candles
}

// PlaceMarketOrder submits a MARKET order and reports the achieved fill.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side common.Side, amount float64) (common.OrderResult, error) {
	if !c.CanTrade() {
		return common.OrderResult{}, common.NewExchangeError(Name, "create_order", common.ErrNoCredentials)
	}

	params := url.Values{}
	params.Set("symbol", MarketSymbol(symbol))
	params.Set("side", strings.ToUpper(string(side)))
	params.Set("type", "MARKET")
	params.Set("quantity", formatFloat(amount))
	params.Set("newOrderRespType", "FULL")

	body, err := c.doSigned(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		return common.OrderResult{}, common.NewExchangeError(Name, "create_order", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return common.OrderResult{}, common.NewExchangeError(Name, "create_order", fmt.Errorf("decode order response: %w", err))
	}
	if strings.EqualFold(resp.Status, "REJECTED") || strings.EqualFold(resp.Status, "EXPIRED") {
		return common.OrderResult{}, &common.ExchangeError{Exchange: Name, Op: "create_order", Reason: "order " + strings.ToLower(resp.Status)}
	}

	return resp.toResult(body), nil
}

// ValidateCredentials reads the account to confirm the key pair works.
func (c *Client) ValidateCredentials(ctx context.Context) error {
	info, err := c.GetAccountInfo(ctx)
	if err != nil {
		return err
	}
	assets := make([]string, 0, 5)
	for _, b := range info.Balances {
		if len(assets) == 5 {
			break
		}
		assets = append(assets, b.Asset)
	}
	log.Printf("binance: balance keys OK (sample assets: %v, canTrade=%t)", assets, info.CanTrade)
	return nil
}

// AccountInfo holds balances and basic flags.
type AccountInfo struct {
	CanTrade   bool      `json:"canTrade"`
	UpdateTime int64     `json:"updateTime"`
	Balances   []Balance `json:"balances"`
}

// Balance represents an asset balance.
type Balance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// GetAccountInfo returns account balances and basic flags.
func (c *Client) GetAccountInfo(ctx context.Context) (*AccountInfo, error) {
	if !c.CanTrade() {
		return nil, common.ErrNoCredentials
	}
	body, err := c.doSigned(ctx, http.MethodGet, "/api/v3/account", url.Values{})
	if err != nil {
		return nil, err
	}
	var info AccountInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode account info: %w", err)
	}
	return &info, nil
}

// GetServerTime fetches server time (ms).
func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	body, err := c.doPublic(ctx, "/api/v3/time", nil)
	if err != nil {
		return 0, err
	}
	var res struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, err
	}
	return res.ServerTime, nil
}

func (c *Client) doPublic(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// doSigned signs the query and performs the HTTP request.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.timeSync.Ensure(ctx)
	params.Set("timestamp", strconv.FormatInt(c.timeSync.Now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	payload := params.Encode()
	encoded := payload + "&signature=" + sign(payload, c.cfg.APISecret)

	var (
		req *http.Request
		err error
	)
	endpoint := c.baseURL + path
	switch method {
	case http.MethodGet, http.MethodDelete:
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+encoded, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(encoded))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	c.rateLimiter.UpdateFromHeader(res.Header.Get("X-MBX-USED-WEIGHT-1M"))

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 300 {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			return nil, fmt.Errorf("status %d: %s (code %d)", res.StatusCode, apiErr.Msg, apiErr.Code)
		}
		return nil, fmt.Errorf("status %d: %s", res.StatusCode, string(body))
	}
	return body, nil
}

type orderResponse struct {
	Symbol              string `json:"symbol"`
	OrderID             int64  `json:"orderId"`
	ClientOrderID       string `json:"clientOrderId"`
	Status              string `json:"status"`
	Price               string `json:"price"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Fills               []struct {
		Price      string `json:"price"`
		Qty        string `json:"qty"`
		Commission string `json:"commission"`
	} `json:"fills"`
}

func (r orderResponse) toResult(raw []byte) common.OrderResult {
	executed := parseFloat(r.ExecutedQty)
	quote := parseFloat(r.CummulativeQuoteQty)

	var avg, fee float64
	if executed > 0 && quote > 0 {
		avg = quote / executed
	}
	var fillQty, fillNotional float64
	for _, f := range r.Fills {
		q := parseFloat(f.Qty)
		fillQty += q
		fillNotional += q * parseFloat(f.Price)
		fee += parseFloat(f.Commission)
	}
	if avg == 0 && fillQty > 0 {
		avg = fillNotional / fillQty
	}
	if executed == 0 {
		executed = fillQty
	}

	return common.OrderResult{
		ExchangeOrderID: strconv.FormatInt(r.OrderID, 10),
		Status:          strings.ToLower(r.Status),
		AvgPrice:        avg,
		Price:           parseFloat(r.Price),
		FilledAmount:    executed,
		Fee:             fee,
		Raw:             json.RawMessage(raw),
	}
}

// MarketSymbol converts "BTC/USDT" to "BTCUSDT".
func MarketSymbol(symbol string) string {
	base, quote := common.SplitSymbol(symbol)
	return base + quote
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case string:
		return parseFloat(t)
	case float64:
		return t
	case json.Number:
		f, _ := t.Float64()
		return f
	default:
		return 0
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case json.Number:
		i, _ := t.Int64()
		return i
	default:
		return 0
	}
}

func sign(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
