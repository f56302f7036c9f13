package strategy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-agent/internal/market"
	"trading-agent/internal/market/markettest"
	"trading-agent/internal/order"
	"trading-agent/internal/store"
	"trading-agent/pkg/exchanges/common"
)

type recorder struct {
	reqs []order.Request
	res  order.Result
	err  error
}

func (r *recorder) Submit(_ context.Context, req order.Request) (order.Result, error) {
	r.reqs = append(r.reqs, req)
	return r.res, r.err
}

func registry(t *testing.T, a *markettest.Adapter) *market.Registry {
	t.Helper()
	reg, err := market.NewRegistry([]common.Adapter{a}, "", nil, nil)
	require.NoError(t, err)
	return reg
}

func TestRunOnceSkipsWithoutPrice(t *testing.T) {
	a := &markettest.Adapter{Series: markettest.Closes(flat(60, 1)...)}
	sub := &recorder{}
	out, err := NewRunner(DefaultSettings(), registry(t, a), sub, nil, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoPrice, out)
	assert.Empty(t, sub.reqs)

	_, candles, _ := a.Calls()
	assert.Zero(t, candles)
}

func TestRunOnceSkipsWithShortHistory(t *testing.T) {
	a := &markettest.Adapter{Price: 1, HasPrice: true, Series: markettest.Closes(flat(49, 1)...)}
	sub := &recorder{}
	out, err := NewRunner(DefaultSettings(), registry(t, a), sub, nil, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoData, out)
	assert.Empty(t, sub.reqs)
}

func TestRunOnceSubmitsConfiguredSize(t *testing.T) {
	settings := DefaultSettings()
	settings.OrderSize = 0.25
	a := &markettest.Adapter{Price: 95, HasPrice: true, Series: markettest.Closes(append(flat(59, 100), 95)...)}
	sub := &recorder{res: order.Result{Status: order.StatusSimulated}}

	out, err := NewRunner(settings, registry(t, a), sub, nil, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubmitted, out)
	require.Len(t, sub.reqs, 1)
	assert.Equal(t, order.Request{Symbol: "BTC/USDT", Side: "sell", Amount: 0.25, Source: "strategy"}, sub.reqs[0])
}

func TestRunOnceOutcomes(t *testing.T) {
	series := markettest.Closes(append(flat(59, 100), 105)...)
	tests := []struct {
		name    string
		sub     *recorder
		want    Outcome
		wantErr bool
	}{
		{"rejected", &recorder{err: &order.RejectionError{Code: "killed", Err: order.ErrKilled}}, OutcomeRejected, false},
		{"exchange failure", &recorder{res: order.Result{Status: order.StatusError}}, OutcomeFailed, false},
		{"unexpected", &recorder{err: errors.New("boom")}, OutcomeFailed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &markettest.Adapter{Price: 105, HasPrice: true, Series: series}
			out, err := NewRunner(DefaultSettings(), registry(t, a), tt.sub, nil, nil).RunOnce(context.Background())
			assert.Equal(t, tt.want, out)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestPaperGoldenCrossEndToEnd(t *testing.T) {
	a := &markettest.Adapter{Price: 105, HasPrice: true, Series: markettest.Closes(append(flat(56, 100), 99, 100, 101, 105)...)}
	reg := registry(t, a)
	exec := order.NewExecutor(order.Config{Mode: order.ModePaper, MaxPositionUSD: 5000}, nil, reg, store.NewGateway(nil, 0, nil), nil, nil)
	spy := &spySubmitter{next: exec}

	out, err := NewRunner(DefaultSettings(), reg, spy, nil, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubmitted, out)
	require.NotNil(t, spy.res.Fill)
	assert.Equal(t, order.StatusSimulated, spy.res.Status)
	assert.Equal(t, 105.0, spy.res.Fill.Price)
	assert.Zero(t, spy.res.Fill.Fee)
	assert.Equal(t, 0.001, spy.res.Fill.Amount)
	assert.Equal(t, "buy", spy.res.Fill.Side)
}

type spySubmitter struct {
	next Submitter
	res  order.Result
}

func (s *spySubmitter) Submit(ctx context.Context, req order.Request) (order.Result, error) {
	res, err := s.next.Submit(ctx, req)
	s.res = res
	return res, err
}

func TestLoadOverlay(t *testing.T) {
	base := DefaultSettings()

	got, loaded, err := LoadOverlay(filepath.Join(t.TempDir(), "missing.yaml"), base)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, base, got)

	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbol: ETH/USDT\norder_size: 0.5\nsma:\n  short: 5\n"), 0o600))
	got, loaded, err = LoadOverlay(path, base)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "ETH/USDT", got.Symbol)
	assert.Equal(t, 0.5, got.OrderSize)
	assert.Equal(t, Params{Short: 5, Long: 50, Buffer: 10}, got.Params)
	assert.Equal(t, "1m", got.Timeframe)

	require.NoError(t, os.WriteFile(path, []byte("sma:\n  short: 80\n"), 0o600))
	_, _, err = LoadOverlay(path, base)
	assert.Error(t, err)
}
