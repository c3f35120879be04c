package benchmark

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"sync"
	"time"

	gprocess "github.com/shirou/gopsutil/v3/process"

	pcontext "github.com/leyden/aotctl/pkg/context"
	"github.com/leyden/aotctl/pkg/logger"
	"github.com/leyden/aotctl/pkg/process"
	"github.com/leyden/aotctl/pkg/state"
	"github.com/leyden/aotctl/pkg/toolchain"
	"github.com/leyden/aotctl/pkg/types"
	"github.com/leyden/aotctl/pkg/utils"
)

// RSSFunc returns the resident set size of a process in bytes
type RSSFunc func(ctx context.Context, pid int32) (uint64, error)

// ProcessRSS reads resident memory through gopsutil
func ProcessRSS(ctx context.Context, pid int32) (uint64, error) {
	proc, err := gprocess.NewProcessWithContext(ctx, pid)
	if err != nil {
		return 0, err
	}
	mem, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return mem.RSS, nil
}

// Report is the outcome of a benchmark launch
type Report struct {
	RunID      string           `json:"runId" yaml:"runId"`
	Invocation types.Invocation `json:"invocation" yaml:"invocation"`
	ExitCode   int              `json:"exitCode" yaml:"exitCode"`
	Duration   time.Duration    `json:"duration" yaml:"duration"`
	PeakRSS    uint64           `json:"peakRss" yaml:"peakRss"`
	Samples    int              `json:"samples" yaml:"samples"`
	// StartupTime is what the application reported for its own startup, if anything
	StartupTime time.Duration `json:"startupTime,omitempty" yaml:"startupTime,omitempty"`
	LogFile     string        `json:"logFile" yaml:"logFile"`
	Summary     *Summary      `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// StateUpdater persists the benchmark stage record
type StateUpdater interface {
	Update(stage types.StageName, fn func(rec *state.StageRecord)) error
}

// Runner launches the application with unified logging and summarises the result
type Runner struct {
	launcher process.Launcher
	logger   logger.Logger
	output   io.Writer
	rss      RSSFunc
	store    StateUpdater
}

// NewRunner creates a benchmark runner writing child output to output
func NewRunner(launcher process.Launcher, log logger.Logger, output io.Writer) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{
		launcher: launcher,
		logger:   log,
		output:   output,
		rss:      ProcessRSS,
	}
}

// WithRSSFunc replaces the memory probe
func (r *Runner) WithRSSFunc(fn RSSFunc) *Runner {
	r.rss = fn
	return r
}

// WithStateStore records every launch as the benchmark stage
func (r *Runner) WithStateStore(store StateUpdater) *Runner {
	r.store = store
	return r
}

func (r *Runner) updateState(log logger.Logger, fn func(rec *state.StageRecord)) {
	if r.store == nil {
		return
	}
	if err := r.store.Update(types.StageBenchmark, fn); err != nil {
		log.Warn("Failed to persist benchmark state", logger.WithField("error", err))
	}
}

// Run launches the benchmark under tc and waits for it to exit
func (r *Runner) Run(ctx context.Context, tc *toolchain.Toolchain, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if tc == nil || tc.Executable == "" {
		return nil, fmt.Errorf("%w: no toolchain resolved", toolchain.ErrToolchainNotFound)
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = 100 * time.Millisecond
	}

	ctx = pcontext.NewRun(ctx, string(types.StageBenchmark))
	log := logger.WithContext(ctx, r.logger).WithStage(string(types.StageBenchmark))

	logPath := opts.LogPath()
	if err := utils.RemoveFile(logPath); err != nil {
		return nil, fmt.Errorf("failed to remove previous log: %w", err)
	}

	inv := types.Invocation{
		Stage:      types.StageBenchmark,
		Executable: tc.Executable,
		WorkDir:    opts.ProjectRoot,
		Args:       Args(opts),
		Env:        opts.Env,
	}
	report := &Report{RunID: pcontext.GetRunID(ctx), Invocation: inv, LogFile: logPath}

	startup := &startupWatcher{}
	var out io.Writer = startup
	if r.output != nil {
		out = io.MultiWriter(r.output, startup)
	}

	startedAt := time.Now()
	r.updateState(log, func(rec *state.StageRecord) {
		rec.Status = types.StageStatusRunning
		rec.RunID = report.RunID
		rec.Executable = tc.Executable
		rec.StartedAt = startedAt
		rec.FinishedAt = time.Time{}
		rec.ExitCode = 0
		rec.LastError = ""
		rec.Reused = false
	})

	s := &sampler{interval: opts.SampleInterval, rss: r.rss}
	log.Info("Launching benchmark",
		logger.WithField("workdir", inv.WorkDir),
		logger.WithField("command", inv.CommandLine()))

	result, err := r.launcher.Launch(ctx, inv, process.LaunchOptions{
		Output: out,
		OnStart: func(pid int) {
			s.start(ctx, int32(pid))
		},
	})
	s.stop()

	report.PeakRSS, report.Samples = s.result()
	report.StartupTime = startup.duration()
	if result != nil {
		report.ExitCode = result.ExitCode
		report.Duration = result.Duration
	}

	finishedAt := time.Now()
	r.updateState(log, func(rec *state.StageRecord) {
		rec.Status = types.StageStatusSucceeded
		rec.FinishedAt = finishedAt
		rec.Duration = finishedAt.Sub(startedAt)
		rec.ExitCode = report.ExitCode
		rec.RunCount++
		if err != nil {
			rec.Status = types.StageStatusFailed
			rec.LastError = err.Error()
			rec.FailureCount++
		}
	})
	if err != nil {
		return report, fmt.Errorf("benchmark failed: %w", err)
	}

	summary, err := ParseLogFile(logPath)
	if err != nil {
		log.Warn("No unified log to summarise", logger.WithField("error", err))
	} else {
		report.Summary = summary
	}

	log.Success(fmt.Sprintf("Benchmark finished in %s", report.Duration.Round(time.Millisecond)),
		logger.WithField("peak_rss", utils.FormatBytes(int64(report.PeakRSS))))
	return report, nil
}

// sampler polls a child's resident memory until stopped
type sampler struct {
	interval time.Duration
	rss      RSSFunc

	mu      sync.Mutex
	peak    uint64
	samples int
	cancel  context.CancelFunc
	done    chan struct{}
}

func (s *sampler) start(parent context.Context, pid int32) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			s.sample(ctx, pid)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *sampler) sample(ctx context.Context, pid int32) {
	rss, err := s.rss(ctx, pid)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples++
	if rss > s.peak {
		s.peak = rss
	}
}

func (s *sampler) stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *sampler) result() (uint64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak, s.samples
}

// Spring Boot prints "Started App in 1.234 seconds (process running for 1.5)"
var startedPattern = regexp.MustCompile(`Started \S+ in ([0-9]+(?:\.[0-9]+)?) seconds`)

// startupWatcher scans child output for the application's startup line
type startupWatcher struct {
	mu      sync.Mutex
	partial []byte
	seconds float64
	found   bool
}

func (w *startupWatcher) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.scan(w.partial[:i])
		w.partial = w.partial[i+1:]
	}
	return len(p), nil
}

func (w *startupWatcher) scan(line []byte) {
	if w.found {
		return
	}
	if m := startedPattern.FindSubmatch(line); m != nil {
		if secs, err := strconv.ParseFloat(string(m[1]), 64); err == nil {
			w.seconds, w.found = secs, true
		}
	}
}

func (w *startupWatcher) duration() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.found && len(w.partial) > 0 {
		w.scan(w.partial)
	}
	if !w.found {
		return 0
	}
	return time.Duration(w.seconds * float64(time.Second))
}
