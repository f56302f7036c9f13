package market

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-agent/pkg/exchanges/common"
)

type tickSource struct {
	dials atomic.Int32
	ticks []float64
}

func (s *tickSource) Name() string { return "stream" }

func (s *tickSource) StreamPrices(ctx context.Context, symbol string) (<-chan common.Tick, func(), error) {
	if s.dials.Add(1) == 1 {
		return nil, nil, errors.New("refused")
	}
	ch := make(chan common.Tick, len(s.ticks))
	for _, p := range s.ticks {
		ch <- common.Tick{Symbol: symbol, Price: p}
	}
	close(ch)
	return ch, func() {}, nil
}

func TestFollowFeedsBookAndReconnects(t *testing.T) {
	reg, err := NewRegistry(nil, "", nil, nil)
	require.NoError(t, err)
	src := &tickSource{ticks: []float64{10, 11, 12}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Follow(ctx, src, "BTC/USDT", time.Second)
		close(done)
	}()

	require.Eventually(t, func() bool {
		price, ok := reg.CachedPrice("BTC/USDT")
		return ok && price == 12
	}, 3*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	q, _ := reg.Book().Get("BTC/USDT")
	assert.Equal(t, "stream", q.Source)
	assert.GreaterOrEqual(t, src.dials.Load(), int32(2))
}
