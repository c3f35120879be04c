package types_test

import (
	"testing"
	"time"

	"github.com/leyden/aotctl/pkg/types"
)

func TestParseStageName(t *testing.T) {
	tests := []struct {
		input   string
		want    types.StageName
		wantErr bool
	}{
		{"record", types.StageRecord, false},
		{" Assemble ", types.StageAssemble, false},
		{"RUN", types.StageRun, false},
		{"package", types.StagePackage, false},
		{"benchmark", types.StageBenchmark, false},
		{"train", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := types.ParseStageName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStageName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStageName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStageStatus_IsTerminal(t *testing.T) {
	tests := map[types.StageStatus]bool{
		types.StageStatusPending:   false,
		types.StageStatusRunning:   false,
		types.StageStatusSucceeded: true,
		types.StageStatusFailed:    true,
	}
	for status, want := range tests {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestPipelineStagesOrder(t *testing.T) {
	want := []types.StageName{types.StagePackage, types.StageRecord, types.StageAssemble, types.StageRun}
	if len(types.PipelineStages) != len(want) {
		t.Fatalf("expected %d stages, got %d", len(want), len(types.PipelineStages))
	}
	for i, s := range want {
		if types.PipelineStages[i] != s {
			t.Errorf("stage %d = %s, want %s", i, types.PipelineStages[i], s)
		}
	}
}

func TestInvocation_CommandLine(t *testing.T) {
	inv := types.Invocation{
		Executable: "/jdk/bin/java",
		Args:       []string{"-XX:AOTMode=on", "-jar", "app.jar"},
	}
	want := "/jdk/bin/java -XX:AOTMode=on -jar app.jar"
	if got := inv.CommandLine(); got != want {
		t.Errorf("CommandLine() = %q, want %q", got, want)
	}
}

func TestWatchConfig_SettleDelay(t *testing.T) {
	tests := []struct {
		settle  string
		want    time.Duration
		wantErr bool
	}{
		{"", time.Second, false},
		{"250ms", 250 * time.Millisecond, false},
		{"2s", 2 * time.Second, false},
		{"soon", 0, true},
		{"-1s", 0, true},
	}
	for _, tt := range tests {
		got, err := types.WatchConfig{Settle: tt.settle}.SettleDelay()
		if (err != nil) != tt.wantErr {
			t.Errorf("SettleDelay(%q) error = %v, wantErr %v", tt.settle, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("SettleDelay(%q) = %v, want %v", tt.settle, got, tt.want)
		}
	}
}
