package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"trading-agent/internal/events"
)

// Monitor watches the event bus and raises alerts for failed live orders,
// control changes and loop faults.
type Monitor struct {
	Bus  *events.Bus
	Sink AlertSink
}

func (m *Monitor) Start(ctx context.Context) {
	if m.Bus == nil || m.Sink == nil {
		log.Println("monitor not fully configured; skipping")
		return
	}
	stream, unsub := m.Bus.Subscribe(50, events.EventOrderFailed, events.EventLoopFault, events.EventControlChange)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-stream:
				if !ok {
					return
				}
				if err := m.Sink.Send(formatAlert(env)); err != nil {
					log.Printf("monitor: alert delivery failed: %v", err)
				}
			}
		}
	}()
}

func formatAlert(env events.Envelope) string {
	return "[" + env.At.Format(time.RFC3339) + "] " + string(env.Topic) + ": " + toString(env.Payload)
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	case events.LoopFault:
		return t.Error
	default:
		return fmt.Sprintf("%+v", t)
	}
}
