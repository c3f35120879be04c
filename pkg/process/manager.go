// Package process supervises the child processes launched by aotctl
package process

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/leyden/aotctl/pkg/logger"
)

// Manager cancels a command's context on SIGINT or SIGTERM. Launched JVMs
// run under that context, so an interrupt stops the stage in flight.
type Manager struct {
	logger logger.Logger

	mu          sync.Mutex
	stop        context.CancelFunc
	generation  int
	interrupted bool
}

// NewManager creates a signal manager
func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{logger: log}
}

// Start returns a context that ends on SIGINT, SIGTERM or when parent is
// done. Calling Start again before Stop returns parent unchanged.
func (m *Manager) Start(parent context.Context) context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return parent
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	m.stop = stop
	m.generation++
	m.interrupted = false
	gen := m.generation

	go func() {
		<-ctx.Done()
		if parent.Err() != nil {
			return
		}
		m.mu.Lock()
		// Stop clears stop; a later Start bumps generation
		active := m.stop != nil && m.generation == gen
		if active {
			m.interrupted = true
		}
		m.mu.Unlock()
		if active {
			m.logger.Warn("Interrupted, stopping the running stage")
		}
	}()
	return ctx
}

// Stop releases signal handling and cancels the context from Start
func (m *Manager) Stop() {
	m.mu.Lock()
	stop := m.stop
	m.stop = nil
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Interrupted reports whether the last Start ended because of a signal
func (m *Manager) Interrupted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interrupted
}
