package coinbase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-agent/pkg/exchanges/common"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("coinbase-secret"))

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	mux.HandleFunc("/time", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"epoch": float64(time.Now().Unix())})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "k", APISecret: testSecret, Passphrase: "p", BaseURL: srv.URL, Timeout: 2 * time.Second})
}

func TestFetchCandlesReversesToOldestFirst(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/products/BTC-USD/candles", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "60", r.URL.Query().Get("granularity"))
		_, _ = io.WriteString(w, `[[1700000120,1,3,2,102,5],[1700000060,1,3,2,101,5],[1700000000,1,3,2,100,5]]`)
	})
	c := newTestClient(t, mux)

	candles := c.FetchCandles(context.Background(), "BTC/USD", "1m", 3)
	require.Len(t, candles, 3)
	assert.Equal(t, []float64{100, 101, 102}, common.Closes(candles))
	assert.Equal(t, 2.0, candles[0].Open)
	assert.Equal(t, 3.0, candles[0].High)

	price, ok := c.FetchLastPrice(context.Background(), "BTC/USD", "1m")
	require.True(t, ok)
	assert.Equal(t, 102.0, price)
}

func TestFetchCandlesUnsupportedTimeframe(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())
	assert.Empty(t, c.FetchCandles(context.Background(), "BTC/USD", "7m", 10))
}

func TestPlaceMarketOrderSignsRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ts := r.Header.Get("CB-ACCESS-TIMESTAMP")
		want, err := sign(testSecret, ts+http.MethodPost+"/orders"+string(body))
		require.NoError(t, err)
		assert.Equal(t, want, r.Header.Get("CB-ACCESS-SIGN"))
		assert.Equal(t, "k", r.Header.Get("CB-ACCESS-KEY"))
		assert.Equal(t, "p", r.Header.Get("CB-ACCESS-PASSPHRASE"))

		var req map[string]string
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "market", req["type"])
		assert.Equal(t, "buy", req["side"])
		assert.Equal(t, "BTC-USD", req["product_id"])
		assert.Equal(t, "0.5", req["size"])

		_, _ = io.WriteString(w, `{"id":"abc","status":"done","filled_size":"0.5","executed_value":"52.5","fill_fees":"0.1"}`)
	})
	c := newTestClient(t, mux)

	res, err := c.PlaceMarketOrder(context.Background(), "BTC/USD", common.SideBuy, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "abc", res.ExchangeOrderID)
	assert.InDelta(t, 105.0, res.AchievedPrice(), 1e-9)
	assert.InDelta(t, 0.1, res.Fee, 1e-9)
}

func TestPlaceMarketOrderRereadsPendingOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"p1","status":"pending","filled_size":"0"}`)
	})
	mux.HandleFunc("/orders/p1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"p1","status":"done","filled_size":"2","executed_value":"200"}`)
	})
	c := newTestClient(t, mux)

	res, err := c.PlaceMarketOrder(context.Background(), "BTC/USD", common.SideSell, 2)
	require.NoError(t, err)
	assert.Equal(t, "done", res.Status)
	assert.InDelta(t, 100.0, res.AchievedPrice(), 1e-9)
}

func TestPlaceMarketOrderFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"invalid signature"}`)
	})
	c := newTestClient(t, mux)

	_, err := c.PlaceMarketOrder(context.Background(), "BTC/USD", common.SideBuy, 1)
	var exErr *common.ExchangeError
	require.True(t, errors.As(err, &exErr))
	assert.Contains(t, exErr.Reason, "invalid signature")
}

func TestValidateCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("CB-ACCESS-SIGN"))
		_, _ = io.WriteString(w, `[{"currency":"USD"},{"currency":"BTC"}]`)
	})
	c := newTestClient(t, mux)
	require.NoError(t, c.ValidateCredentials(context.Background()))

	assert.ErrorIs(t, New(Config{}).ValidateCredentials(context.Background()), common.ErrNoCredentials)
}

func TestProductID(t *testing.T) {
	assert.Equal(t, "BTC-USDT", ProductID("BTC/USDT"))
	assert.Equal(t, "BTC-USD", ProductID("btc-usd"))
}
