package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSide(t *testing.T) {
	s, err := ParseSide("BUY")
	require.NoError(t, err)
	assert.Equal(t, SideBuy, s)

	s, err = ParseSide(" sell ")
	require.NoError(t, err)
	assert.Equal(t, SideSell, s)

	_, err = ParseSide("hold")
	assert.Error(t, err)
}

func TestAchievedPricePreference(t *testing.T) {
	assert.Equal(t, 101.5, OrderResult{AvgPrice: 101.5, Price: 100}.AchievedPrice())
	assert.Equal(t, 100.0, OrderResult{Price: 100}.AchievedPrice())
	assert.Equal(t, 0.0, OrderResult{}.AchievedPrice())
}

func TestSplitSymbol(t *testing.T) {
	tests := []struct {
		in, base, quote string
	}{
		{"BTC/USDT", "BTC", "USDT"},
		{"eth-usd", "ETH", "USD"},
		{"BTCUSDT", "BTCUSDT", ""},
	}
	for _, tt := range tests {
		base, quote := SplitSymbol(tt.in)
		assert.Equal(t, tt.base, base, tt.in)
		assert.Equal(t, tt.quote, quote, tt.in)
	}
}

func TestTimeframeDuration(t *testing.T) {
	d, err := TimeframeDuration("15m")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d)

	_, err = TimeframeDuration("7m")
	assert.Error(t, err)
}

func TestExchangeErrorUnwraps(t *testing.T) {
	cause := errors.New("status 401: invalid key")
	err := NewExchangeError("binance", "create_order", cause)

	var exErr *ExchangeError
	require.True(t, errors.As(err, &exErr))
	assert.Equal(t, "binance", exErr.Exchange)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "invalid key")
}

func TestTimeSyncOffset(t *testing.T) {
	server := time.Now().Add(2 * time.Second).UnixMilli()
	ts := NewTimeSync(func(context.Context) (int64, error) { return server, nil })

	require.NoError(t, ts.Sync(context.Background()))
	assert.InDelta(t, 2000, ts.Offset(), 200)
}

func TestRateLimiterUsage(t *testing.T) {
	rl := NewRateLimiter(100, 10, 1200, time.Minute)
	require.NoError(t, rl.Wait(context.Background()))

	rl.UpdateFromHeader("600")
	used, limit, pct := rl.GetUsage()
	assert.Equal(t, 600, used)
	assert.Equal(t, 1200, limit)
	assert.InDelta(t, 50.0, pct, 0.001)

	rl.UpdateFromHeader("not-a-number")
	used, _, _ = rl.GetUsage()
	assert.Equal(t, 600, used)
}
