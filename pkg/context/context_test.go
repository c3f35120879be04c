package context_test

import (
	"context"
	"strings"
	"testing"
	"time"

	pcontext "github.com/leyden/aotctl/pkg/context"
)

func TestNewRun(t *testing.T) {
	ctx := pcontext.NewRun(context.Background(), "assemble")

	runID := pcontext.GetRunID(ctx)
	if !strings.HasPrefix(runID, "run_") {
		t.Errorf("expected run ID with run_ prefix, got %q", runID)
	}
	if got := pcontext.GetOperation(ctx); got != "assemble" {
		t.Errorf("expected operation assemble, got %q", got)
	}
	if pcontext.GetDuration(ctx) < 0 {
		t.Error("duration should never be negative")
	}
}

func TestRunIDsAreUnique(t *testing.T) {
	a := pcontext.GenerateRunID()
	b := pcontext.GenerateRunID()
	if a == b {
		t.Errorf("expected distinct run IDs, got %q twice", a)
	}
}

func TestWithRunID_Explicit(t *testing.T) {
	ctx := pcontext.WithRunID(context.Background(), "run_fixed")
	if got := pcontext.GetRunID(ctx); got != "run_fixed" {
		t.Errorf("expected run_fixed, got %q", got)
	}
}

func TestGetDuration_NoStartTime(t *testing.T) {
	if d := pcontext.GetDuration(context.Background()); d != 0 {
		t.Errorf("expected zero duration, got %v", d)
	}
}

func TestGetDuration_WithStartTime(t *testing.T) {
	ctx := pcontext.WithStartTime(context.Background(), time.Now().Add(-time.Second))
	if d := pcontext.GetDuration(ctx); d < time.Second {
		t.Errorf("expected at least 1s, got %v", d)
	}
}

func TestTracingFields(t *testing.T) {
	ctx := pcontext.WithRunID(context.Background(), "run_1")
	ctx = pcontext.WithStage(ctx, "record")

	fields := pcontext.TracingFields(ctx)
	if fields["run_id"] != "run_1" {
		t.Errorf("expected run_id run_1, got %v", fields["run_id"])
	}
	if fields["stage"] != "record" {
		t.Errorf("expected stage record, got %v", fields["stage"])
	}
	if _, ok := fields["operation"]; ok {
		t.Error("operation should be absent when not set")
	}
}
