package control

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTransitions(t *testing.T) {
	s := NewState(time.Now())
	snap := s.Snapshot()
	assert.True(t, snap.Running)
	assert.False(t, snap.Killed)

	snap, err := s.Apply("pause")
	require.NoError(t, err)
	assert.False(t, snap.Running)

	snap, err = s.Apply("RESUME")
	require.NoError(t, err)
	assert.True(t, snap.Running)

	snap, err = s.Apply("kill")
	require.NoError(t, err)
	assert.True(t, snap.Killed)
	assert.False(t, snap.Running)

	snap, err = s.Apply("resume")
	require.NoError(t, err)
	assert.True(t, snap.Killed, "kill is sticky")
}

func TestApplyUnknownLeavesStateAlone(t *testing.T) {
	s := NewState(time.Now())
	before := s.Snapshot()
	after, err := s.Apply("liquidate")
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Equal(t, before, after)
}

func TestKillIsNeverObservedHalfApplied(t *testing.T) {
	s := NewState(time.Now())
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			running, killed := s.Gate()
			if killed && running {
				t.Error("observed killed=true running=true")
				return
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		_, _ = s.Apply("resume")
	}
	_, _ = s.Apply("kill")
	close(done)
	wg.Wait()
}
