package pipeline

import (
	"fmt"
	"sync"

	"github.com/leyden/aotctl/pkg/types"
)

// Tracker holds the status of every stage in a run. The only allowed
// transitions are pending -> running -> succeeded|failed.
type Tracker struct {
	mu     sync.RWMutex
	order  []types.StageName
	status map[types.StageName]types.StageStatus
}

// NewTracker creates a tracker with all stages pending
func NewTracker(stages ...types.StageName) *Tracker {
	t := &Tracker{
		order:  append([]types.StageName(nil), stages...),
		status: make(map[types.StageName]types.StageStatus, len(stages)),
	}
	for _, s := range stages {
		t.status[s] = types.StageStatusPending
	}
	return t
}

// Transition moves stage from one status to another
func (t *Tracker) Transition(stage types.StageName, from, to types.StageStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.status[stage]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	if cur != from {
		return fmt.Errorf("%w for %s: expected %s, got %s", ErrInvalidTransition, stage, from, cur)
	}
	if !allowed(from, to) {
		return fmt.Errorf("%w for %s: %s -> %s", ErrInvalidTransition, stage, from, to)
	}
	t.status[stage] = to
	return nil
}

// Status returns the current status of stage
func (t *Tracker) Status(stage types.StageName) types.StageStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status[stage]
}

// Stages returns the tracked stages in order
func (t *Tracker) Stages() []types.StageName {
	return append([]types.StageName(nil), t.order...)
}

func allowed(from, to types.StageStatus) bool {
	switch from {
	case types.StageStatusPending:
		return to == types.StageStatusRunning
	case types.StageStatusRunning:
		return to == types.StageStatusSucceeded || to == types.StageStatusFailed
	default:
		return false
	}
}
