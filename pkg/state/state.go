// Package state persists the outcome of each stage between invocations
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/leyden/aotctl/pkg/logger"
	"github.com/leyden/aotctl/pkg/types"
)

// StageRecord is the persisted state of one stage
type StageRecord struct {
	Stage        types.StageName   `json:"stage" yaml:"stage"`
	Status       types.StageStatus `json:"status" yaml:"status"`
	RunID        string            `json:"runId,omitempty" yaml:"runId,omitempty"`
	Archive      string            `json:"archive,omitempty" yaml:"archive,omitempty"`
	Executable   string            `json:"executable,omitempty" yaml:"executable,omitempty"`
	StartedAt    time.Time         `json:"startedAt" yaml:"startedAt"`
	FinishedAt   time.Time         `json:"finishedAt" yaml:"finishedAt"`
	Duration     time.Duration     `json:"duration,omitempty" yaml:"duration,omitempty"`
	ExitCode     int               `json:"exitCode" yaml:"exitCode"`
	LastError    string            `json:"lastError,omitempty" yaml:"lastError,omitempty"`
	Reused       bool              `json:"reused,omitempty" yaml:"reused,omitempty"`
	RunCount     int               `json:"runCount" yaml:"runCount"`
	FailureCount int               `json:"failureCount" yaml:"failureCount"`
	ProcessID    int               `json:"processId" yaml:"processId"`
}

// Manager reads and writes stage records as JSON files
type Manager struct {
	stateDir string
	logger   logger.Logger
	mu       sync.RWMutex
	records  map[types.StageName]*StageRecord
}

// NewManager creates a state manager storing records in stateDir
func NewManager(stateDir string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		stateDir: stateDir,
		logger:   log,
		records:  make(map[types.StageName]*StageRecord),
	}
}

// Dir returns the directory holding state files
func (sm *Manager) Dir() string {
	return sm.stateDir
}

// Read returns the record for a stage, or nil when none was written yet
func (sm *Manager) Read(stage types.StageName) (*StageRecord, error) {
	sm.mu.RLock()
	if rec, ok := sm.records[stage]; ok {
		copied := *rec
		sm.mu.RUnlock()
		return &copied, nil
	}
	sm.mu.RUnlock()

	rec, err := sm.loadStateFile(stage)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return rec, err
}

// Update applies fn to the stage record and saves it atomically
func (sm *Manager) Update(stage types.StageName, fn func(rec *StageRecord)) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	rec, ok := sm.records[stage]
	if !ok {
		loaded, err := sm.loadStateFile(stage)
		switch {
		case err == nil:
			rec = loaded
		case os.IsNotExist(err):
			rec = &StageRecord{Stage: stage, Status: types.StageStatusPending}
		default:
			sm.logger.Warn("Discarding unreadable state file",
				logger.WithField("stage", stage),
				logger.WithField("error", err))
			rec = &StageRecord{Stage: stage, Status: types.StageStatusPending}
		}
		sm.records[stage] = rec
	}

	fn(rec)
	rec.Stage = stage
	rec.ProcessID = os.Getpid()

	return sm.saveStateFile(rec)
}

// Discover loads every record present on disk
func (sm *Manager) Discover() (map[types.StageName]*StageRecord, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	records := make(map[types.StageName]*StageRecord)

	files, err := os.ReadDir(sm.stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return records, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}

		stage := types.StageName(strings.TrimSuffix(file.Name(), ".json"))
		rec, err := sm.loadStateFile(stage)
		if err != nil {
			sm.logger.Warn("Failed to load state file",
				logger.WithField("stage", stage),
				logger.WithField("error", err))
			continue
		}
		records[stage] = rec
	}

	return records, nil
}

// Clean removes all state files
func (sm *Manager) Clean() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.records = make(map[types.StageName]*StageRecord)
	if err := os.RemoveAll(sm.stateDir); err != nil {
		return fmt.Errorf("failed to remove state directory: %w", err)
	}
	return nil
}

func (sm *Manager) getStateFilePath(stage types.StageName) string {
	return filepath.Join(sm.stateDir, string(stage)+".json")
}

func (sm *Manager) loadStateFile(stage types.StageName) (*StageRecord, error) {
	data, err := os.ReadFile(sm.getStateFilePath(stage))
	if err != nil {
		return nil, err
	}

	var rec StageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &rec, nil
}

func (sm *Manager) saveStateFile(rec *StageRecord) error {
	if err := os.MkdirAll(sm.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	stateFile := sm.getStateFilePath(rec.Stage)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write atomically
	tempFile := stateFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tempFile, stateFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}
