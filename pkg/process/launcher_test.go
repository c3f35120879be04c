package process_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/leyden/aotctl/pkg/process"
	"github.com/leyden/aotctl/pkg/types"
)

// script writes an executable shell script standing in for the java launcher
func script(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "java")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecLauncher_Success(t *testing.T) {
	exe := script(t, `echo "cwd=$(pwd)"; echo "args=$*"`)
	workDir := t.TempDir()
	logDir := filepath.Join(t.TempDir(), "logs")

	var out bytes.Buffer
	var startedPID int
	l := process.NewExecLauncher(logDir, nil)
	res, err := l.Launch(context.Background(), types.Invocation{
		Stage:      types.StageRecord,
		Executable: exe,
		WorkDir:    workDir,
		Args:       []string{"-XX:AOTMode=record", "-jar", "app.jar"},
	}, process.LaunchOptions{
		Output:  &out,
		OnStart: func(pid int) { startedPID = pid },
	})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	if res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", res.ExitCode)
	}
	if startedPID == 0 || startedPID != res.PID {
		t.Errorf("OnStart pid %d does not match result pid %d", startedPID, res.PID)
	}

	realWorkDir, _ := filepath.EvalSymlinks(workDir)
	output := out.String()
	if !strings.Contains(output, "cwd="+realWorkDir) && !strings.Contains(output, "cwd="+workDir) {
		t.Errorf("expected child to run in %s, output %q", workDir, output)
	}
	if !strings.Contains(output, "args=-XX:AOTMode=record -jar app.jar") {
		t.Errorf("unexpected args in output %q", output)
	}

	logData, err := os.ReadFile(l.LogPath(types.StageRecord))
	if err != nil {
		t.Fatalf("expected stage log file: %v", err)
	}
	for _, want := range []string{"=== record started at", "Executing: " + exe, "args=-XX:AOTMode=record", "=== record SUCCEEDED"} {
		if !strings.Contains(string(logData), want) {
			t.Errorf("log file missing %q", want)
		}
	}
}

func TestExecLauncher_NonZeroExit(t *testing.T) {
	exe := script(t, `echo "Error: AOTConfiguration file not found" >&2; exit 3`)

	var out bytes.Buffer
	res, err := process.NewExecLauncher("", nil).Launch(context.Background(), types.Invocation{
		Stage:      types.StageAssemble,
		Executable: exe,
		WorkDir:    t.TempDir(),
	}, process.LaunchOptions{Output: &out})

	if !errors.Is(err, process.ErrProcessFailed) {
		t.Fatalf("expected ErrProcessFailed, got %v", err)
	}
	var exitErr *process.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %T", err)
	}
	if exitErr.ExitCode != 3 || exitErr.Stage != types.StageAssemble {
		t.Errorf("unexpected exit error %+v", exitErr)
	}
	if res == nil || res.ExitCode != 3 {
		t.Errorf("expected result with exit code 3, got %+v", res)
	}
	if !strings.Contains(out.String(), "AOTConfiguration file not found") {
		t.Error("stderr should be captured in output")
	}
}

func TestExecLauncher_SpawnFailure(t *testing.T) {
	res, err := process.NewExecLauncher("", nil).Launch(context.Background(), types.Invocation{
		Stage:      types.StageRun,
		Executable: filepath.Join(t.TempDir(), "no-such-java"),
		WorkDir:    t.TempDir(),
	}, process.LaunchOptions{})

	if err == nil {
		t.Fatal("expected spawn error")
	}
	if errors.Is(err, process.ErrProcessFailed) {
		t.Error("spawn failure should not look like a non-zero exit")
	}
	if res != nil {
		t.Errorf("expected nil result, got %+v", res)
	}
}

func TestExecLauncher_Env(t *testing.T) {
	exe := script(t, `echo "profile=$SPRING_PROFILES_ACTIVE"`)

	var out bytes.Buffer
	_, err := process.NewExecLauncher("", nil).Launch(context.Background(), types.Invocation{
		Stage:      types.StageRun,
		Executable: exe,
		WorkDir:    t.TempDir(),
		Env:        []string{"SPRING_PROFILES_ACTIVE=aot"},
	}, process.LaunchOptions{Output: &out})
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if !strings.Contains(out.String(), "profile=aot") {
		t.Errorf("expected env to reach child, got %q", out.String())
	}
}

func TestExecLauncher_Cancelled(t *testing.T) {
	exe := script(t, `exec sleep 5`)

	l := process.NewExecLauncher("", nil)
	l.WaitDelay = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := l.Launch(ctx, types.Invocation{
		Stage:      types.StageRun,
		Executable: exe,
		WorkDir:    t.TempDir(),
	}, process.LaunchOptions{})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("cancelled child was not stopped promptly")
	}
}
