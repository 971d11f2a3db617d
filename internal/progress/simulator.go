package progress

import (
	"sync"
	"time"
)

// State is the simulator's lifecycle state.
type State int

const (
	Idle State = iota
	Running
)

// Snapshot is a point-in-time view for the progress endpoints.
type Snapshot struct {
	State      State
	StageIndex int
	StageLabel string
	Elapsed    time.Duration
}

// Simulator drives decorative, time-based progress for the duration of one
// opaque inference call. The backend reports nothing mid-flight, so the
// simulator advances through a fixed stage schedule on its own clock. Two
// invariants hold: the stage index never moves backward, and a terminal job
// state forces an immediate reset even if the schedule hasn't finished.
//
// Every timer callback carries the generation it was armed under; Reset bumps
// the generation, so callbacks from a previous run can never mutate state
// after the owning job ended. That stale-timer race is the primary bug class
// here.
type Simulator struct {
	mu         sync.Mutex
	stages     []Stage
	state      State
	stageIndex int
	elapsed    time.Duration
	gen        uint64
	timers     []*time.Timer
	ticker     *time.Ticker
	tickDone   chan struct{}
}

// NewSimulator builds an idle simulator over the given stage schedule.
func NewSimulator(stages []Stage) *Simulator {
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	return &Simulator{stages: stages}
}

// Start resets any previous run and begins a new one: a one-second elapsed
// tick plus stage advancement timers at cumulative expected offsets.
func (s *Simulator) Start() {
	s.mu.Lock()
	s.stopLocked()
	s.gen++
	gen := s.gen
	s.state = Running
	s.stageIndex = 0
	s.elapsed = 0

	var offset time.Duration
	for i := 1; i < len(s.stages); i++ {
		offset += s.stages[i-1].Expected
		idx := i
		at := offset
		s.timers = append(s.timers, time.AfterFunc(at, func() {
			s.advance(gen, idx)
		}))
	}

	ticker := time.NewTicker(time.Second)
	done := make(chan struct{})
	s.ticker = ticker
	s.tickDone = done
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.tick(gen, time.Second)
			}
		}
	}()
}

// Reset forces the simulator back to Idle and disarms all pending timers.
// Safe to call multiple times; called when the job reaches a terminal state
// or the user abandons it.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen++
	s.state = Idle
	s.stageIndex = 0
	s.elapsed = 0
}

// Snapshot returns the current view.
func (s *Simulator) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{State: s.state, StageIndex: s.stageIndex, Elapsed: s.elapsed}
	if s.state == Running && s.stageIndex < len(s.stages) {
		snap.StageLabel = s.stages[s.stageIndex].Label
	}
	return snap
}

// advance moves the stage index forward, never backward. Callbacks armed
// under an older generation are ignored.
func (s *Simulator) advance(gen uint64, idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != Running {
		return
	}
	if idx > s.stageIndex && idx < len(s.stages) {
		s.stageIndex = idx
	}
}

// tick accumulates elapsed display time under the same generation guard.
func (s *Simulator) tick(gen uint64, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != Running {
		return
	}
	s.elapsed += d
}

// stopLocked disarms timers and the tick loop; caller holds the mutex.
func (s *Simulator) stopLocked() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	if s.tickDone != nil {
		close(s.tickDone)
		s.tickDone = nil
	}
}
