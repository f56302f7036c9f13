package sample

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-agent/pkg/exchanges/common"
)

const csvData = `timestamp,open,high,low,close,volume
1700000000,1,2,0.5,99,10
1700000060000,1,2,0.5,100,10
2023-11-14T22:15:00Z,1,2,0.5,101,10
2023-11-14 22:16:00,1,2,0.5,105,10
`

func TestParse(t *testing.T) {
	candles, err := Parse(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, candles, 4)
	assert.Equal(t, []float64{99, 100, 101, 105}, common.Closes(candles))
	assert.Equal(t, int64(1700000000), candles[0].OpenTime.Unix())
	assert.Equal(t, int64(1700000060), candles[1].OpenTime.Unix())
}

func TestParseRejectsMissingColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("timestamp,open,close\n1,2,3\n"))
	assert.Error(t, err)
}

func TestFeedServesTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ohlc.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvData), 0o600))
	feed := New(path, "")

	candles := feed.FetchCandles(context.Background(), "BTC/USDT", "1m", 2)
	assert.Equal(t, []float64{101, 105}, common.Closes(candles))

	price, ok := feed.FetchLastPrice(context.Background(), "BTC/USDT", "1m")
	require.True(t, ok)
	assert.Equal(t, 105.0, price)
	assert.False(t, feed.CanTrade())

	_, err := feed.PlaceMarketOrder(context.Background(), "BTC/USDT", common.SideBuy, 1)
	var exErr *common.ExchangeError
	assert.True(t, errors.As(err, &exErr))
}

func TestFeedMissingFileIsEmpty(t *testing.T) {
	feed := New(filepath.Join(t.TempDir(), "missing.csv"), "")
	assert.Empty(t, feed.FetchCandles(context.Background(), "BTC/USDT", "1m", 10))
	_, ok := feed.FetchLastPrice(context.Background(), "BTC/USDT", "1m")
	assert.False(t, ok)
}

func TestFeedOnlyServesItsSymbol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ohlc.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvData), 0o600))
	feed := New(path, "ETH/USDT")
	ctx := context.Background()

	_, ok := feed.FetchLastPrice(ctx, "DOGE/USDT", "1m")
	assert.False(t, ok)
	assert.Empty(t, feed.FetchCandles(ctx, "BTC/USDT", "1m", 10))

	price, ok := feed.FetchLastPrice(ctx, "eth-usdt", "1m")
	require.True(t, ok)
	assert.Equal(t, 105.0, price)
}
