package control

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"trading-agent/internal/events"
	"trading-agent/internal/monitor"
	"trading-agent/internal/strategy"
	"trading-agent/pkg/i18n"
)

const (
	DefaultInterval      = 60 * time.Second
	DefaultFaultInterval = 5 * time.Second
)

// Cycle is one unit of strategy work.
type Cycle interface {
	RunOnce(ctx context.Context) (strategy.Outcome, error)
}

// Loop runs the cycle on a fixed period. A killed state idles for a full
// period without running the cycle; a fault is recorded and retried after
// the shorter fault interval. Only context cancellation ends the loop.
type Loop struct {
	state         *State
	cycle         Cycle
	interval      time.Duration
	faultInterval time.Duration
	bus           *events.Bus
	metrics       *monitor.Metrics
	now           func() time.Time
}

func NewLoop(state *State, cycle Cycle, interval, faultInterval time.Duration, bus *events.Bus, metrics *monitor.Metrics) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if faultInterval <= 0 {
		faultInterval = DefaultFaultInterval
	}
	return &Loop{
		state:         state,
		cycle:         cycle,
		interval:      interval,
		faultInterval: faultInterval,
		bus:           bus,
		metrics:       metrics,
		now:           time.Now,
	}
}

// Run blocks until ctx is done. The first cycle runs immediately.
func (l *Loop) Run(ctx context.Context) {
	log.Printf(i18n.Get("LoopStarted"), l.interval, l.faultInterval)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println(i18n.Get("LoopStopped"))
			return
		case <-timer.C:
			timer.Reset(l.Step(ctx))
		}
	}
}

// Step performs one iteration and returns the delay before the next one.
func (l *Loop) Step(ctx context.Context) time.Duration {
	running, killed := l.state.Gate()
	l.metrics.SetControl(running, killed)

	switch {
	case killed:
		log.Printf(i18n.Get("LoopKilled"), l.interval)
		l.metrics.ObserveCycle("killed")
		l.state.recordIdle(l.now().Add(l.interval))
		return l.interval
	case !running:
		l.metrics.ObserveCycle("paused")
		l.state.recordIdle(l.now().Add(l.interval))
		return l.interval
	}

	outcome, err := l.runCycle(ctx)
	at := l.now()
	if err != nil {
		log.Printf(i18n.Get("LoopFault"), err, l.faultInterval)
		l.state.recordFault(at, err, at.Add(l.faultInterval))
		l.metrics.ObserveCycle("fault")
		l.bus.Publish(events.EventLoopFault, events.LoopFault{Error: err.Error(), At: at.UTC()})
		return l.faultInterval
	}

	l.state.recordCycle(at, string(outcome), at.Add(l.interval))
	l.metrics.ObserveCycle(string(outcome))
	return l.interval
}

func (l *Loop) runCycle(ctx context.Context) (outcome strategy.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf(i18n.Get("LoopPanic"), r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.cycle.RunOnce(ctx)
}
