package pipeline_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/leyden/aotctl/pkg/artifact"
	"github.com/leyden/aotctl/pkg/pipeline"
	"github.com/leyden/aotctl/pkg/types"
)

func scenarioPlan() pipeline.Plan {
	return pipeline.Plan{
		Executable: "/opt/jdk-25/bin/java",
		Archive:    artifact.NewArchive("/build/libs/app.jar"),
		Artifacts: artifact.Artifacts{
			Dir:        "/build/aot",
			ConfigFile: "/build/aot/aot-config.json",
			CacheFile:  "/build/aot/aot-cache.jsa",
		},
	}
}

func TestPlan_Record(t *testing.T) {
	stage := scenarioPlan().Record()

	want := []string{
		"-XX:AOTMode=record",
		"-XX:AOTConfiguration=/build/aot/aot-config.json",
		"-jar", "app.jar",
		"--spring.main.web-application-type=none",
	}
	if diff := cmp.Diff(want, stage.Invocation.Args); diff != "" {
		t.Errorf("record args mismatch (-want +got):\n%s", diff)
	}
	if stage.Invocation.WorkDir != "/build/libs" {
		t.Errorf("expected workdir /build/libs, got %s", stage.Invocation.WorkDir)
	}
	if diff := cmp.Diff([]string{"/build/aot/aot-config.json"}, stage.Produces); diff != "" {
		t.Errorf("record produces mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_Assemble(t *testing.T) {
	stage := scenarioPlan().Assemble()

	want := []string{
		"-cp", "app.jar",
		"-XX:AOTMode=create",
		"-XX:AOTConfiguration=/build/aot/aot-config.json",
		"-XX:AOTCache=/build/aot/aot-cache.jsa",
		"-Xlog:class+path=info",
	}
	if diff := cmp.Diff(want, stage.Invocation.Args); diff != "" {
		t.Errorf("assemble args mismatch (-want +got):\n%s", diff)
	}
	if stage.Invocation.WorkDir != "/build/libs" {
		t.Errorf("expected workdir /build/libs, got %s", stage.Invocation.WorkDir)
	}
	for _, arg := range stage.Invocation.Args {
		if arg == "-jar" {
			t.Error("assemble must not use -jar")
		}
	}

	var configRequired bool
	for _, req := range stage.Consumes {
		if req.Path == "/build/aot/aot-config.json" {
			configRequired = req.NonEmpty
		}
	}
	if !configRequired {
		t.Error("assemble must require a non-empty training config")
	}
}

func TestPlan_Run(t *testing.T) {
	plan := scenarioPlan()
	plan.App.Args = []string{"--server.port=9090"}
	stage := plan.Run()

	want := []string{
		"-XX:AOTMode=on",
		"-XX:AOTCache=/build/aot/aot-cache.jsa",
		"-jar", "app.jar",
		"--server.port=9090",
	}
	if diff := cmp.Diff(want, stage.Invocation.Args); diff != "" {
		t.Errorf("run args mismatch (-want +got):\n%s", diff)
	}
	if len(stage.Produces) != 0 {
		t.Errorf("run should produce nothing, got %v", stage.Produces)
	}
}

func TestPlan_SameExecutableEverywhere(t *testing.T) {
	plan := scenarioPlan()
	for _, name := range []types.StageName{types.StageRecord, types.StageAssemble, types.StageRun} {
		stage, err := plan.Stage(name)
		if err != nil {
			t.Fatalf("Stage(%s) failed: %v", name, err)
		}
		if stage.Invocation.Executable != plan.Executable {
			t.Errorf("%s uses %s, want %s", name, stage.Invocation.Executable, plan.Executable)
		}
		if stage.Invocation.Stage != name {
			t.Errorf("invocation stage = %s, want %s", stage.Invocation.Stage, name)
		}
	}

	if _, err := plan.Stage(types.StageBenchmark); !errors.Is(err, pipeline.ErrUnknownStage) {
		t.Errorf("expected ErrUnknownStage for benchmark, got %v", err)
	}
}

func TestRecordArgs_AutoExitFlag(t *testing.T) {
	tests := []struct {
		name     string
		training []string
		want     []string
	}{
		{
			name: "default",
			want: []string{"-XX:AOTMode=record", "-XX:AOTConfiguration=/c.json", "-jar", "a.jar", pipeline.AutoExitFlag},
		},
		{
			name:     "extra args keep the flag",
			training: []string{"--spring.profiles.active=training"},
			want: []string{"-XX:AOTMode=record", "-XX:AOTConfiguration=/c.json", "-jar", "a.jar",
				pipeline.AutoExitFlag, "--spring.profiles.active=training"},
		},
		{
			name:     "flag not duplicated",
			training: []string{pipeline.AutoExitFlag},
			want:     []string{"-XX:AOTMode=record", "-XX:AOTConfiguration=/c.json", "-jar", "a.jar", pipeline.AutoExitFlag},
		},
		{
			name:     "flag moved in front of training args",
			training: []string{"--debug", pipeline.AutoExitFlag},
			want: []string{"-XX:AOTMode=record", "-XX:AOTConfiguration=/c.json", "-jar", "a.jar",
				pipeline.AutoExitFlag, "--debug"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pipeline.RecordArgs("a.jar", "/c.json", tt.training)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPackageInvocation(t *testing.T) {
	tests := []struct {
		command string
		wantExe string
		want    []string
	}{
		{"./gradlew bootJar", "./gradlew", []string{"bootJar"}},
		{"mvn -q package -DskipTests", "mvn", []string{"-q", "package", "-DskipTests"}},
		{"./gradlew clean && ./gradlew bootJar", "sh", []string{"-c", "./gradlew clean && ./gradlew bootJar"}},
		{"make jar | tee build.log", "sh", []string{"-c", "make jar | tee build.log"}},
		{"", "sh", []string{"-c", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			inv := pipeline.PackageInvocation(tt.command, "/project", map[string]string{"B": "2", "A": "1"})
			if inv.Executable != tt.wantExe {
				t.Errorf("executable = %q, want %q", inv.Executable, tt.wantExe)
			}
			if diff := cmp.Diff(tt.want, inv.Args); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
			if inv.WorkDir != "/project" {
				t.Errorf("workdir = %q, want /project", inv.WorkDir)
			}
			if diff := cmp.Diff([]string{"A=1", "B=2"}, inv.Env); diff != "" {
				t.Errorf("env mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRequirement_Check(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full.json")
	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(full, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		req     pipeline.Requirement
		wantErr bool
	}{
		{"present", pipeline.Requirement{Path: full, NonEmpty: true}, false},
		{"missing", pipeline.Requirement{Path: filepath.Join(dir, "nope")}, true},
		{"empty allowed", pipeline.Requirement{Path: empty}, false},
		{"empty rejected", pipeline.Requirement{Path: empty, NonEmpty: true}, true},
		{"directory", pipeline.Requirement{Path: dir}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Check()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, pipeline.ErrMissingArtifact) {
				t.Errorf("expected ErrMissingArtifact, got %v", err)
			}
		})
	}
}
