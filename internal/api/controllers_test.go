package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"trading-agent/internal/control"
	"trading-agent/internal/events"
	"trading-agent/internal/market"
	"trading-agent/internal/market/markettest"
	"trading-agent/internal/monitor"
	"trading-agent/internal/order"
	"trading-agent/internal/store"
	"trading-agent/pkg/exchanges/common"
)

type testOptions struct {
	mode      order.Mode
	keys      bool
	noStore   bool
	jwtSecret string
}

func newTestAPIServer(t *testing.T, opts testOptions) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := events.NewBus()
	metrics := monitor.NewMetrics("test")
	state := control.NewState(time.Now())

	adapter := &markettest.Adapter{ExchangeName: "binance", Keys: opts.keys, Price: 105, HasPrice: true}
	reg, err := market.NewRegistry([]common.Adapter{adapter}, "", bus, metrics)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	var backend store.Backend
	if !opts.noStore {
		sqlite, err := store.OpenSQLite(":memory:")
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		backend = sqlite
	}
	gw := store.NewGateway(backend, time.Second, metrics)

	mode := opts.mode
	if mode == "" {
		mode = order.ModePaper
	}
	exec := order.NewExecutor(order.Config{Mode: mode, MaxPositionUSD: 5000}, state, reg, gw, bus, metrics)

	server := NewServer(Deps{
		Bus:       bus,
		Control:   state,
		Orders:    exec,
		Store:     gw,
		Market:    reg,
		Metrics:   metrics,
		JWTSecret: opts.jwtSecret,
		Meta: SystemMeta{
			Mode:            string(mode),
			Instance:        "test-instance",
			MaxPositionUSD:  5000,
			MaxDailyLossPct: 5,
		},
	})

	ts := httptest.NewServer(server.Router)
	t.Cleanup(func() {
		ts.Close()
		gw.Close()
	})
	return ts
}

func doJSONRequest(t *testing.T, client *http.Client, method, url, token string, payload any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

type errorBody struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func TestStatus(t *testing.T) {
	ts := newTestAPIServer(t, testOptions{keys: true})

	var resp map[string]any
	status := doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/status", "", nil, &resp)
	if status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}
	if resp["mode"] != "paper" {
		t.Fatalf("mode=%v", resp["mode"])
	}
	if resp["lastError"] != nil {
		t.Fatalf("lastError=%v", resp["lastError"])
	}
	if _, ok := resp["uptimeSeconds"].(float64); !ok {
		t.Fatalf("uptimeSeconds missing: %v", resp)
	}
	ex, _ := resp["connectedExchanges"].([]any)
	if len(ex) != 1 || ex[0] != "binance" {
		t.Fatalf("connectedExchanges=%v", resp["connectedExchanges"])
	}
	if resp["running"] != true || resp["killed"] != false {
		t.Fatalf("flags=%v/%v", resp["running"], resp["killed"])
	}
	if resp["maxDailyLossPct"] != 5.0 {
		t.Fatalf("maxDailyLossPct=%v", resp["maxDailyLossPct"])
	}
}

func TestPaperTradeRoundTrip(t *testing.T) {
	ts := newTestAPIServer(t, testOptions{})
	client := ts.Client()

	var res struct {
		Status string `json:"status"`
		Fill   struct {
			Price float64 `json:"price"`
			Fee   float64 `json:"fee"`
			Mode  string  `json:"mode"`
		} `json:"fill"`
	}
	status := doJSONRequest(t, client, http.MethodPost, ts.URL+"/trade", "", map[string]any{
		"symbol": "BTC/USDT", "side": "buy", "amount": 0.001,
	}, &res)
	if status != http.StatusOK || res.Status != "simulated" {
		t.Fatalf("trade status=%d resp=%+v", status, res)
	}
	if res.Fill.Price != 105 || res.Fill.Fee != 0 || res.Fill.Mode != "paper" {
		t.Fatalf("fill=%+v", res.Fill)
	}

	var positions []map[string]any
	doJSONRequest(t, client, http.MethodGet, ts.URL+"/positions", "", nil, &positions)
	if len(positions) != 1 || positions[0]["entry_price"] != 105.0 {
		t.Fatalf("positions=%v", positions)
	}

	doJSONRequest(t, client, http.MethodPost, ts.URL+"/trade", "", map[string]any{
		"symbol": "BTC/USDT", "side": "sell", "amount": 0.001,
	}, nil)
	positions = nil
	doJSONRequest(t, client, http.MethodGet, ts.URL+"/positions", "", nil, &positions)
	if len(positions) != 0 {
		t.Fatalf("expected no positions after sell, got %v", positions)
	}

	var report map[string]any
	status = doJSONRequest(t, client, http.MethodGet, ts.URL+"/pnl", "", nil, &report)
	if status != http.StatusOK || report["realized"] != 0.0 || report["trades"] != 2.0 {
		t.Fatalf("pnl status=%d resp=%v", status, report)
	}
}

func TestTradeRejections(t *testing.T) {
	tests := []struct {
		name    string
		opts    testOptions
		kill    bool
		payload map[string]any
		code    string
		detail  string
	}{
		{"killed", testOptions{}, true, map[string]any{"symbol": "BTC/USDT", "side": "buy", "amount": 1}, "TRADING_KILLED", "Trading is killed"},
		{"live without keys", testOptions{mode: order.ModeLive}, false, map[string]any{"symbol": "BTC/USDT", "side": "buy", "amount": 1}, "NO_EXCHANGE", "No exchange keys configured for live mode"},
		{"exposure", testOptions{}, false, map[string]any{"symbol": "BTC/USDT", "side": "buy", "amount": 6000}, "EXPOSURE_LIMIT", "Amount exceeds MAX_POSITION_USD"},
		{"bad side", testOptions{}, false, map[string]any{"symbol": "BTC/USDT", "side": "short", "amount": 1}, "INVALID_REQUEST", ""},
		{"missing amount", testOptions{}, false, map[string]any{"symbol": "BTC/USDT", "side": "buy"}, "INVALID_REQUEST", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestAPIServer(t, tt.opts)
			if tt.kill {
				doJSONRequest(t, ts.Client(), http.MethodPost, ts.URL+"/control", "", map[string]string{"action": "kill"}, nil)
			}

			var resp errorBody
			status := doJSONRequest(t, ts.Client(), http.MethodPost, ts.URL+"/trade", "", tt.payload, &resp)
			if status != http.StatusBadRequest || resp.Code != tt.code {
				t.Fatalf("status=%d resp=%+v", status, resp)
			}
			if !strings.HasPrefix(resp.Detail, tt.detail) {
				t.Fatalf("detail=%q want prefix %q", resp.Detail, tt.detail)
			}
		})
	}
}

func TestControl(t *testing.T) {
	ts := newTestAPIServer(t, testOptions{})
	client := ts.Client()

	var resp struct {
		Running bool `json:"running"`
		Killed  bool `json:"killed"`
	}
	status := doJSONRequest(t, client, http.MethodPost, ts.URL+"/control", "", map[string]string{"action": "pause"}, &resp)
	if status != http.StatusOK || resp.Running || resp.Killed {
		t.Fatalf("pause: status=%d resp=%+v", status, resp)
	}

	status = doJSONRequest(t, client, http.MethodPost, ts.URL+"/control", "", map[string]string{"action": "kill"}, &resp)
	if status != http.StatusOK || resp.Running || !resp.Killed {
		t.Fatalf("kill: status=%d resp=%+v", status, resp)
	}

	var bad errorBody
	status = doJSONRequest(t, client, http.MethodPost, ts.URL+"/control", "", map[string]string{"action": "reboot"}, &bad)
	if status != http.StatusBadRequest || bad.Code != "UNKNOWN_ACTION" {
		t.Fatalf("unknown: status=%d resp=%+v", status, bad)
	}
}

func TestPnLWithoutStore(t *testing.T) {
	ts := newTestAPIServer(t, testOptions{noStore: true})

	var resp map[string]any
	status := doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/pnl", "", nil, &resp)
	if status != http.StatusOK || resp["error"] != "store not configured" || resp["realized"] != 0.0 || resp["unrealized"] != 0.0 {
		t.Fatalf("status=%d resp=%v", status, resp)
	}

	var positions []any
	doJSONRequest(t, ts.Client(), http.MethodGet, ts.URL+"/positions", "", nil, &positions)
	if positions == nil || len(positions) != 0 {
		t.Fatalf("positions=%v", positions)
	}
}

func TestJWTGuardsMutatingRoutes(t *testing.T) {
	const secret = "test-secret"
	ts := newTestAPIServer(t, testOptions{jwtSecret: secret})
	client := ts.Client()

	var bad errorBody
	status := doJSONRequest(t, client, http.MethodPost, ts.URL+"/control", "", map[string]string{"action": "pause"}, &bad)
	if status != http.StatusUnauthorized || bad.Code != "MISSING_TOKEN" {
		t.Fatalf("status=%d resp=%+v", status, bad)
	}

	status = doJSONRequest(t, client, http.MethodPost, ts.URL+"/control", "garbage", map[string]string{"action": "pause"}, &bad)
	if status != http.StatusUnauthorized || bad.Code != "INVALID_TOKEN" {
		t.Fatalf("status=%d resp=%+v", status, bad)
	}

	token, err := IssueToken("ops", secret, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	var traded struct {
		Status string `json:"status"`
		Fill   struct {
			Raw map[string]any `json:"raw"`
		} `json:"fill"`
	}
	status = doJSONRequest(t, client, http.MethodPost, ts.URL+"/trade", token, map[string]any{"symbol": "BTC/USDT", "side": "buy", "amount": 0.001}, &traded)
	if status != http.StatusOK || traded.Status != "simulated" {
		t.Fatalf("authorized trade status=%d resp=%+v", status, traded)
	}
	if traded.Fill.Raw["operator"] != "ops" || traded.Fill.Raw["source"] != "manual" {
		t.Fatalf("fill raw missing operator: %+v", traded.Fill.Raw)
	}

	status = doJSONRequest(t, client, http.MethodPost, ts.URL+"/control", token, map[string]string{"action": "pause"}, nil)
	if status != http.StatusOK {
		t.Fatalf("authorized control status=%d", status)
	}

	if status := doJSONRequest(t, client, http.MethodGet, ts.URL+"/status", "", nil, nil); status != http.StatusOK {
		t.Fatalf("status route should stay open, got %d", status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestAPIServer(t, testOptions{})
	client := ts.Client()
	doJSONRequest(t, client, http.MethodPost, ts.URL+"/trade", "", map[string]any{"symbol": "BTC/USDT", "side": "buy", "amount": 1}, nil)

	resp, err := client.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `test_orders_total{mode="paper",outcome="simulated"} 1`) {
		t.Fatalf("metrics missing order counter:\n%s", body)
	}
}

func TestWebsocketStreamsEvents(t *testing.T) {
	ts := newTestAPIServer(t, testOptions{})
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The subscription is registered right after the upgrade; retry until an
	// event arrives.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgs := make(chan events.Envelope, 1)
	go func() {
		var env struct {
			Topic events.Event `json:"topic"`
		}
		if err := conn.ReadJSON(&env); err == nil {
			msgs <- events.Envelope{Topic: env.Topic}
		}
	}()

	deadline := time.After(2 * time.Second)
	for {
		doJSONRequest(t, ts.Client(), http.MethodPost, ts.URL+"/control", "", map[string]string{"action": "resume"}, nil)
		select {
		case env := <-msgs:
			if env.Topic != events.EventControlChange {
				t.Fatalf("topic=%s", env.Topic)
			}
			return
		case <-deadline:
			t.Fatal("no event received")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
