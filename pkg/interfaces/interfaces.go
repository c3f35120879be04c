// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"context"
	"time"

	"github.com/leyden/aotctl/pkg/process"
	"github.com/leyden/aotctl/pkg/state"
	"github.com/leyden/aotctl/pkg/toolchain"
	"github.com/leyden/aotctl/pkg/types"
)

// StateStore persists per-stage records between invocations
type StateStore interface {
	Read(stage types.StageName) (*state.StageRecord, error)
	Update(stage types.StageName, fn func(rec *state.StageRecord)) error
	Discover() (map[types.StageName]*state.StageRecord, error)
	Clean() error
}

// StageNotifier reports stage outcomes to the user
type StageNotifier interface {
	NotifySuccess(target types.StageName, duration time.Duration)
	NotifyFailure(stage types.StageName, err error)
	NotifyBenchmark(duration time.Duration, classesLoaded int)
}

// ToolchainResolver finds the Java runtime used by every stage
type ToolchainResolver interface {
	Resolve(ctx context.Context, spec string) (*toolchain.Toolchain, error)
}

// ProcessManager handles signal-driven cancellation
type ProcessManager interface {
	Start(parent context.Context) context.Context
	Stop()
	Interrupted() bool
}

// Dependencies contains the injectable collaborators of a pipeline run
type Dependencies struct {
	Launcher       process.Launcher
	StateStore     StateStore
	Notifier       StageNotifier
	Resolver       ToolchainResolver
	ProcessManager ProcessManager
}
