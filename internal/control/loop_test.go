package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-agent/internal/events"
	"trading-agent/internal/strategy"
)

type scriptedCycle struct {
	calls int
	steps []func() (strategy.Outcome, error)
}

func (c *scriptedCycle) RunOnce(context.Context) (strategy.Outcome, error) {
	i := c.calls
	c.calls++
	if i < len(c.steps) {
		return c.steps[i]()
	}
	return strategy.OutcomeNoSignal, nil
}

func TestStepRunsCycleWhenRunning(t *testing.T) {
	s := NewState(time.Now())
	cycle := &scriptedCycle{}
	l := NewLoop(s, cycle, time.Minute, 5*time.Second, nil, nil)

	assert.Equal(t, time.Minute, l.Step(context.Background()))
	assert.Equal(t, 1, cycle.calls)
	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.Loop.Cycles)
	assert.Equal(t, string(strategy.OutcomeNoSignal), snap.Loop.LastOutcome)
}

func TestStepSkipsWhenPausedOrKilled(t *testing.T) {
	s := NewState(time.Now())
	cycle := &scriptedCycle{}
	l := NewLoop(s, cycle, time.Minute, 5*time.Second, nil, nil)

	_, _ = s.Apply("pause")
	assert.Equal(t, time.Minute, l.Step(context.Background()))
	_, _ = s.Apply("kill")
	assert.Equal(t, time.Minute, l.Step(context.Background()))
	assert.Zero(t, cycle.calls)
}

func TestStepAbsorbsErrorsAndPanics(t *testing.T) {
	s := NewState(time.Now())
	bus := events.NewBus()
	faults, unsub := bus.Subscribe(2, events.EventLoopFault)
	defer unsub()

	cycle := &scriptedCycle{steps: []func() (strategy.Outcome, error){
		func() (strategy.Outcome, error) { return strategy.OutcomeFailed, errors.New("exchange exploded") },
		func() (strategy.Outcome, error) { panic("nil map") },
	}}
	l := NewLoop(s, cycle, time.Minute, 5*time.Second, bus, nil)

	assert.Equal(t, 5*time.Second, l.Step(context.Background()))
	assert.Equal(t, "exchange exploded", s.Snapshot().LastError)

	assert.Equal(t, 5*time.Second, l.Step(context.Background()))
	assert.Contains(t, s.Snapshot().LastError, "nil map")

	assert.Equal(t, time.Minute, l.Step(context.Background()))
	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.Loop.Faults)
	assert.Equal(t, uint64(1), snap.Loop.Cycles)
	assert.Contains(t, snap.LastError, "nil map", "lastError survives a clean cycle")

	require.Len(t, faults, 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewState(time.Now())
	cycle := &scriptedCycle{}
	l := NewLoop(s, cycle, time.Hour, time.Hour, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Snapshot().Loop.Cycles == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
