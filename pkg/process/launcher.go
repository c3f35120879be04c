package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/leyden/aotctl/pkg/logger"
	"github.com/leyden/aotctl/pkg/types"
)

//go:generate mockgen -destination=../mocks/mock_launcher.go -package=mocks github.com/leyden/aotctl/pkg/process Launcher

// Launcher spawns a child process and waits for it to exit
type Launcher interface {
	Launch(ctx context.Context, inv types.Invocation, opts LaunchOptions) (*Result, error)
}

// LaunchOptions controls where output goes and lets callers observe the child
type LaunchOptions struct {
	// Output receives combined stdout and stderr; nil discards it
	Output io.Writer
	// OnStart is called with the child PID once it has been spawned
	OnStart func(pid int)
}

// Result describes a finished process
type Result struct {
	PID       int
	ExitCode  int
	StartedAt time.Time
	Duration  time.Duration
}

// ExecLauncher runs invocations with os/exec and appends their output to a
// per-stage log file
type ExecLauncher struct {
	// LogDir receives <stage>.log files; empty disables file logging
	LogDir string
	// WaitDelay bounds how long a cancelled child may take to exit before it is killed
	WaitDelay time.Duration

	logger logger.Logger
}

// NewExecLauncher creates a launcher writing stage logs under logDir
func NewExecLauncher(logDir string, log logger.Logger) *ExecLauncher {
	if log == nil {
		log = logger.Discard()
	}
	return &ExecLauncher{
		LogDir:    logDir,
		WaitDelay: 10 * time.Second,
		logger:    log,
	}
}

// Launch runs inv to completion. A non-zero exit returns *ExitError alongside
// the result; a failure to spawn returns only the error.
func (l *ExecLauncher) Launch(ctx context.Context, inv types.Invocation, opts LaunchOptions) (*Result, error) {
	log := l.logger.WithStage(string(inv.Stage))

	logFile, err := l.prepareLogFile(inv.Stage)
	if err != nil {
		log.Warn(fmt.Sprintf("Failed to create log file: %v", err))
	}
	defer func() {
		if logFile != nil {
			logFile.Close()
		}
	}()

	var out io.Writer = io.Discard
	switch {
	case opts.Output != nil && logFile != nil:
		out = io.MultiWriter(opts.Output, logFile)
	case opts.Output != nil:
		out = opts.Output
	case logFile != nil:
		out = logFile
	}

	cmd := exec.CommandContext(ctx, inv.Executable, inv.Args...)
	cmd.Dir = inv.WorkDir
	cmd.Stdout = out
	cmd.Stderr = out
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = l.WaitDelay

	startedAt := time.Now()
	writeLine(logFile, fmt.Sprintf("\n=== %s started at %s ===\n", inv.Stage, startedAt.Format("2006-01-02 15:04:05")))
	writeLine(logFile, fmt.Sprintf("Working directory: %s\nExecuting: %s\n", inv.WorkDir, inv.CommandLine()))

	log.Debug("Launching process",
		logger.WithField("workdir", inv.WorkDir),
		logger.WithField("command", inv.CommandLine()))

	if err := cmd.Start(); err != nil {
		writeLine(logFile, fmt.Sprintf("Failed to start: %v\n", err))
		return nil, fmt.Errorf("failed to start %s: %w", inv.Executable, err)
	}

	result := &Result{PID: cmd.Process.Pid, StartedAt: startedAt}
	if opts.OnStart != nil {
		opts.OnStart(result.PID)
	}

	err = cmd.Wait()
	result.Duration = time.Since(startedAt)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.ExitCode = -1
			writeLine(logFile, fmt.Sprintf("\n=== %s INTERRUPTED after %s ===\n", inv.Stage, result.Duration))
			return result, fmt.Errorf("%s interrupted: %w", inv.Stage, ctxErr)
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			writeLine(logFile, fmt.Sprintf("\n=== %s FAILED after %s (exit code %d) ===\n", inv.Stage, result.Duration, result.ExitCode))
			return result, &ExitError{Stage: inv.Stage, ExitCode: result.ExitCode}
		}

		writeLine(logFile, fmt.Sprintf("\n=== %s FAILED after %s: %v ===\n", inv.Stage, result.Duration, err))
		return result, fmt.Errorf("%s: %w", inv.Stage, err)
	}

	writeLine(logFile, fmt.Sprintf("\n=== %s SUCCEEDED after %s ===\n", inv.Stage, result.Duration))
	return result, nil
}

// LogPath returns the log file used for a stage
func (l *ExecLauncher) LogPath(stage types.StageName) string {
	if l.LogDir == "" {
		return ""
	}
	return filepath.Join(l.LogDir, fmt.Sprintf("%s.log", stage))
}

func (l *ExecLauncher) prepareLogFile(stage types.StageName) (*os.File, error) {
	if l.LogDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(l.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile, err := os.OpenFile(l.LogPath(stage), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return logFile, nil
}

func writeLine(logFile *os.File, message string) {
	if logFile != nil {
		logFile.WriteString(message)
	}
}
