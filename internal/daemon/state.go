package daemon

import (
	"sync"
	"time"

	"inboxsync/internal/model"
)

// RunState counts what the daemon's triggers did since it started.
type RunState struct {
	mu          sync.RWMutex
	startedAt   time.Time
	runs        int
	failed      int
	rejected    int
	lastTrigger model.TriggerSource
	lastRun     *time.Time
	lastResult  *model.SyncResult
}

func NewRunState() *RunState {
	return &RunState{startedAt: time.Now()}
}

func (s *RunState) RecordRun(source model.TriggerSource, result model.SyncResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs++
	if !result.Success {
		s.failed++
	}
	s.lastTrigger = source
	s.lastRun = new(time.Now())

	result.Errors = append([]string{}, result.Errors...)
	s.lastResult = &result
}

func (s *RunState) RecordRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected++
}

// Snapshot fills the run counters of a RunSnapshot. Status and the ledger
// fields are left for the caller.
func (s *RunState) Snapshot() model.RunSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := model.RunSnapshot{
		Status:      model.RunStatusIdle,
		StartedAt:   s.startedAt,
		Runs:        s.runs,
		Failed:      s.failed,
		Rejected:    s.rejected,
		LastTrigger: string(s.lastTrigger),
	}

	if s.lastRun != nil {
		snap.LastRun = new(*s.lastRun)
	}
	if s.lastResult != nil {
		res := *s.lastResult
		res.Errors = append([]string{}, res.Errors...)
		snap.LastResult = &res
	}

	return snap
}
