package control

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrUnknownAction is returned by Apply for anything but pause, resume or kill.
var ErrUnknownAction = errors.New("unknown action")

// Action is an operator command.
type Action string

const (
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionKill   Action = "kill"
)

// Health describes the supervised loop.
type Health struct {
	Cycles      uint64    `json:"cycles"`
	Faults      uint64    `json:"faults"`
	LastOutcome string    `json:"lastOutcome,omitempty"`
	LastCycleAt time.Time `json:"lastCycleAt,omitempty"`
	LastFaultAt time.Time `json:"lastFaultAt,omitempty"`
	NextRunAt   time.Time `json:"nextRunAt,omitempty"`
}

// Snapshot is a consistent copy of the control state.
type Snapshot struct {
	Running   bool      `json:"running"`
	Killed    bool      `json:"killed"`
	LastError string    `json:"lastError,omitempty"`
	StartTime time.Time `json:"startTime"`
	Loop      Health    `json:"loop"`
}

// Uptime since StartTime as of now.
func (s Snapshot) Uptime(now time.Time) time.Duration { return now.Sub(s.StartTime) }

// State is the one control object shared by the loop and the HTTP handlers.
// Every field sits behind the same mutex so readers never see a torn state.
type State struct {
	mu        sync.RWMutex
	running   bool
	killed    bool
	lastError string
	startTime time.Time
	health    Health
}

// NewState starts running and not killed.
func NewState(now time.Time) *State {
	return &State{running: true, startTime: now}
}

// Apply performs an operator action. Kill also pauses. Kill is sticky: resume
// sets running again but the loop keeps idling while killed.
func (s *State) Apply(action string) (Snapshot, error) {
	a := Action(strings.ToLower(strings.TrimSpace(action)))

	s.mu.Lock()
	defer s.mu.Unlock()
	switch a {
	case ActionPause:
		s.running = false
	case ActionResume:
		s.running = true
	case ActionKill:
		s.killed = true
		s.running = false
	default:
		return s.snapshotLocked(), ErrUnknownAction
	}
	return s.snapshotLocked(), nil
}

func (s *State) Killed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.killed
}

// Gate returns the flags in one read.
func (s *State) Gate() (running, killed bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running, s.killed
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Running:   s.running,
		Killed:    s.killed,
		LastError: s.lastError,
		StartTime: s.startTime,
		Loop:      s.health,
	}
}

func (s *State) recordCycle(at time.Time, outcome string, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health.Cycles++
	s.health.LastOutcome = outcome
	s.health.LastCycleAt = at
	s.health.NextRunAt = next
}

// recordFault stores err as lastError. lastError is kept until the next fault.
func (s *State) recordFault(at time.Time, err error, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err.Error()
	s.health.Faults++
	s.health.LastOutcome = "fault"
	s.health.LastFaultAt = at
	s.health.NextRunAt = next
}

func (s *State) recordIdle(next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health.NextRunAt = next
}
