package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trading-agent/pkg/exchanges/common"
)

// StreamClient reads Binance public trade streams.
type StreamClient struct {
	StreamURL string
	dialer    *websocket.Dialer
}

// NewStreamClient builds a websocket client; testnet toggles the host.
func NewStreamClient(testnet bool) *StreamClient {
	host := "stream.binance.com:9443"
	if testnet {
		host = "testnet.binance.vision"
	}
	return &StreamClient{
		StreamURL: (&url.URL{Scheme: "wss", Host: host, Path: "/ws"}).String(),
		dialer:    websocket.DefaultDialer,
	}
}

func (c *StreamClient) Name() string { return Name }

// StreamPrices subscribes to the trade stream of symbol and emits each trade
// price. The channel closes when ctx ends, stop is called or the connection
// drops.
func (c *StreamClient) StreamPrices(ctx context.Context, symbol string) (<-chan common.Tick, func(), error) {
	// Binance requires lowercase symbols for WebSocket streams
	stream := strings.ToLower(MarketSymbol(symbol)) + "@trade"
	conn, _, err := c.dialer.DialContext(ctx, c.StreamURL+"/"+stream, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial binance ws: %w", err)
	}

	out := make(chan common.Tick, 100)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			// Ignore errors; connection may already be closed.
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		})
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()

	go func() {
		defer close(done)
		defer close(out)
		defer stop()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
					!strings.Contains(err.Error(), "use of closed network connection") {
					log.Printf("binance: ws read error: %v", err)
				}
				return
			}

			tick, err := parseTradeMessage(msg)
			if err != nil {
				log.Printf("binance: ws parse error: %v", err)
				continue
			}
			tick.Symbol = symbol
			select {
			case out <- tick:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, stop, nil
}

func parseTradeMessage(msg []byte) (common.Tick, error) {
	var raw struct {
		Price     any `json:"p"`
		TradeTime any `json:"T"`
	}
	if err := json.Unmarshal(msg, &raw); err != nil {
		return common.Tick{}, err
	}
	price := toFloat(raw.Price)
	if price <= 0 {
		return common.Tick{}, fmt.Errorf("trade message without price: %s", msg)
	}
	return common.Tick{
		Price: price,
		Time:  time.UnixMilli(toInt64(raw.TradeTime)).UTC(),
	}, nil
}
