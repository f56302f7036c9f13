package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Supabase talks to the PostgREST interface of a Supabase project.
type Supabase struct {
	baseURL string
	key     string
	client  *http.Client
}

var _ Backend = (*Supabase)(nil)

func NewSupabase(baseURL, key string, timeout time.Duration) *Supabase {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Supabase{
		baseURL: strings.TrimRight(baseURL, "/") + "/rest/v1",
		key:     key,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *Supabase) Name() string { return "supabase" }

func (s *Supabase) Close() {}

type supabaseTrade struct {
	Exchange  string          `json:"exchange"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Amount    float64         `json:"amount"`
	Price     float64         `json:"price"`
	Fee       float64         `json:"fee"`
	Mode      string          `json:"mode"`
	Raw       json.RawMessage `json:"raw"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

func (s *Supabase) InsertTrade(ctx context.Context, t TradeRecord) error {
	raw := t.Raw
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	row := supabaseTrade{
		Exchange: t.Exchange, Symbol: t.Symbol, Side: t.Side, Amount: t.Amount,
		Price: t.Price, Fee: t.Fee, Mode: t.Mode, Raw: raw,
	}
	if !t.Timestamp.IsZero() {
		ts := t.Timestamp.UTC()
		row.Timestamp = &ts
	}
	_, err := s.do(ctx, http.MethodPost, "/trades", row)
	return err
}

func (s *Supabase) RecentTrades(ctx context.Context, limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 1000
	}
	q := url.Values{}
	q.Set("select", "exchange,symbol,side,amount,price,fee,mode,timestamp")
	q.Set("order", "timestamp.desc")
	q.Set("limit", strconv.Itoa(limit))
	body, err := s.do(ctx, http.MethodGet, "/trades?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var rows []supabaseTrade
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	out := make([]TradeRecord, 0, len(rows))
	for _, r := range rows {
		t := TradeRecord{
			Exchange: r.Exchange, Symbol: r.Symbol, Side: r.Side, Amount: r.Amount,
			Price: r.Price, Fee: r.Fee, Mode: r.Mode,
		}
		if r.Timestamp != nil {
			t.Timestamp = *r.Timestamp
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Supabase) InsertPosition(ctx context.Context, p Position) error {
	_, err := s.do(ctx, http.MethodPost, "/positions", map[string]any{
		"symbol":      p.Symbol,
		"exchange":    p.Exchange,
		"side":        p.Side,
		"amount":      p.Amount,
		"entry_price": p.EntryPrice,
	})
	return err
}

type supabasePosition struct {
	ID         json.RawMessage `json:"id"`
	Symbol     string          `json:"symbol"`
	Exchange   string          `json:"exchange"`
	Side       string          `json:"side"`
	Amount     float64         `json:"amount"`
	EntryPrice float64         `json:"entry_price"`
}

func (s *Supabase) ListPositions(ctx context.Context, symbol string) ([]Position, error) {
	path := "/positions?order=id.asc"
	if symbol != "" {
		path += "&symbol=eq." + url.QueryEscape(symbol)
	}
	body, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var rows []supabasePosition
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	out := make([]Position, 0, len(rows))
	for _, r := range rows {
		out = append(out, Position{
			ID:         strings.Trim(string(r.ID), `"`),
			Symbol:     r.Symbol,
			Exchange:   r.Exchange,
			Side:       r.Side,
			Amount:     r.Amount,
			EntryPrice: r.EntryPrice,
		})
	}
	return out, nil
}

func (s *Supabase) DeletePosition(ctx context.Context, id string) error {
	_, err := s.do(ctx, http.MethodDelete, "/positions?id=eq."+url.QueryEscape(id), nil)
	return err
}

func (s *Supabase) UpdatePositionAmount(ctx context.Context, id string, amount float64) error {
	_, err := s.do(ctx, http.MethodPatch, "/positions?id=eq."+url.QueryEscape(id), map[string]float64{"amount": amount})
	return err
}

func (s *Supabase) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	res, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("supabase %s %s: status %d: %s", method, strings.SplitN(path, "?", 2)[0], res.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}
