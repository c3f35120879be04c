package process_test

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/leyden/aotctl/pkg/process"
)

func TestManager_Stop(t *testing.T) {
	m := process.NewManager(nil)

	ctx := m.Start(context.Background())
	if again := m.Start(context.Background()); again == ctx {
		t.Error("second Start should not hand out the managed context")
	}

	m.Stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled on stop")
	}
	// a stopped manager can be started again
	next := m.Start(context.Background())
	if next.Err() != nil {
		t.Error("restarted context should be live")
	}
	m.Stop()
	if next.Err() == nil {
		t.Error("restarted context not cancelled on stop")
	}
	if m.Interrupted() {
		t.Error("stop is not an interrupt")
	}
	m.Stop()
}

func TestManager_ParentCancellation(t *testing.T) {
	m := process.NewManager(nil)
	parent, cancel := context.WithCancel(context.Background())

	ctx := m.Start(parent)
	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("parent cancellation did not propagate")
	}
	m.Stop()
}

func TestManager_Signal(t *testing.T) {
	m := process.NewManager(nil)
	ctx := m.Start(context.Background())
	defer m.Stop()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("SIGTERM did not cancel the context")
	}

	deadline := time.Now().Add(time.Second)
	for !m.Interrupted() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !m.Interrupted() {
		t.Error("expected Interrupted after SIGTERM")
	}
}
