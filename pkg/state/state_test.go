package state_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leyden/aotctl/pkg/state"
	"github.com/leyden/aotctl/pkg/types"
)

func TestManager_UpdateAndRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	sm := state.NewManager(dir, nil)

	err := sm.Update(types.StageRecord, func(rec *state.StageRecord) {
		rec.Status = types.StageStatusSucceeded
		rec.RunID = "run_1"
		rec.RunCount++
		rec.Duration = 3 * time.Second
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "record.json")); err != nil {
		t.Fatalf("state file not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "record.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	// A fresh manager must see the persisted record
	rec, err := state.NewManager(dir, nil).Read(types.StageRecord)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if rec.Status != types.StageStatusSucceeded || rec.RunID != "run_1" || rec.RunCount != 1 {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.ProcessID != os.Getpid() {
		t.Errorf("expected pid %d, got %d", os.Getpid(), rec.ProcessID)
	}
}

func TestManager_CountersAccumulateAcrossManagers(t *testing.T) {
	dir := t.TempDir()

	for i := 0; i < 3; i++ {
		sm := state.NewManager(dir, nil)
		sm.Update(types.StageAssemble, func(rec *state.StageRecord) {
			rec.RunCount++
		})
	}

	rec, _ := state.NewManager(dir, nil).Read(types.StageAssemble)
	if rec.RunCount != 3 {
		t.Errorf("expected run count 3, got %d", rec.RunCount)
	}
}

func TestManager_ReadMissing(t *testing.T) {
	rec, err := state.NewManager(t.TempDir(), nil).Read(types.StageRun)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record, got %+v", rec)
	}
}

func TestManager_DiscoverSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	sm := state.NewManager(dir, nil)
	sm.Update(types.StageRecord, func(rec *state.StageRecord) { rec.Status = types.StageStatusSucceeded })
	sm.Update(types.StageAssemble, func(rec *state.StageRecord) { rec.Status = types.StageStatusFailed })
	os.WriteFile(filepath.Join(dir, "run.json"), []byte("{not json"), 0644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644)

	records, err := sm.Discover()
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[types.StageAssemble].Status != types.StageStatusFailed {
		t.Errorf("unexpected assemble status %s", records[types.StageAssemble].Status)
	}
}

func TestManager_DiscoverMissingDir(t *testing.T) {
	records, err := state.NewManager(filepath.Join(t.TempDir(), "nope"), nil).Discover()
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestManager_Clean(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	sm := state.NewManager(dir, nil)
	sm.Update(types.StageRun, func(rec *state.StageRecord) { rec.Status = types.StageStatusSucceeded })

	if err := sm.Clean(); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("state directory should be gone")
	}
	rec, _ := sm.Read(types.StageRun)
	if rec != nil {
		t.Error("in-memory record should be dropped by Clean")
	}
}
