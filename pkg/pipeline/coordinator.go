// Package pipeline chains the package, record, assemble and run stages
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/leyden/aotctl/pkg/artifact"
	pcontext "github.com/leyden/aotctl/pkg/context"
	"github.com/leyden/aotctl/pkg/interfaces"
	"github.com/leyden/aotctl/pkg/logger"
	"github.com/leyden/aotctl/pkg/process"
	"github.com/leyden/aotctl/pkg/state"
	"github.com/leyden/aotctl/pkg/toolchain"
	"github.com/leyden/aotctl/pkg/types"
	"github.com/leyden/aotctl/pkg/utils"
)

// Settings are the configuration-derived inputs of a pipeline run
type Settings struct {
	ProjectRoot string
	// ArchivePath is the configured archive file or the directory holding it
	ArchivePath string
	Package     types.PackageConfig
	App         types.AppConfig
	Staleness   types.StalenessPolicy
	Artifacts   artifact.Artifacts
	Toolchain   *toolchain.Toolchain
}

// Options select which stages a run executes
type Options struct {
	Target types.StageName
	// Only runs Target alone without its upstream stages
	Only bool
	// SkipPackage leaves out the packaging step even when a command is configured
	SkipPackage bool
}

// StageReport is the outcome of one stage
type StageReport struct {
	Stage      types.StageName
	Status     types.StageStatus
	Reused     bool
	Invocation *types.Invocation
	Result     *process.Result
	Err        error
}

// Report summarises a pipeline run
type Report struct {
	RunID    string
	Target   types.StageName
	Archive  types.Archive
	Stages   []*StageReport
	Duration time.Duration
}

// Stage returns the report for name, or nil when the stage was not selected
func (r *Report) Stage(name types.StageName) *StageReport {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s
		}
	}
	return nil
}

// Failed returns the stage that stopped the run, or nil
func (r *Report) Failed() *StageReport {
	for _, s := range r.Stages {
		if s.Status == types.StageStatusFailed {
			return s
		}
	}
	return nil
}

// Coordinator executes stages in order, checking artifacts between them
type Coordinator struct {
	settings Settings
	launcher process.Launcher
	store    interfaces.StateStore
	notifier interfaces.StageNotifier
	locator  *artifact.Locator
	logger   logger.Logger
	output   io.Writer
}

// NewCoordinator creates a coordinator. Child process output goes to output.
func NewCoordinator(settings Settings, deps interfaces.Dependencies, log logger.Logger, output io.Writer) *Coordinator {
	if log == nil {
		log = logger.Discard()
	}
	if settings.Staleness == "" {
		settings.Staleness = types.StalenessOverwrite
	}
	return &Coordinator{
		settings: settings,
		launcher: deps.Launcher,
		store:    deps.StateStore,
		notifier: deps.Notifier,
		locator:  artifact.NewLocator(settings.ProjectRoot),
		logger:   log,
		output:   output,
	}
}

// Stages returns the stages opts selects, in execution order
func (c *Coordinator) Stages(opts Options) ([]types.StageName, error) {
	target := opts.Target
	idx := -1
	for i, s := range types.PipelineStages {
		if s == target {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, target)
	}
	if opts.Only {
		return []types.StageName{target}, nil
	}

	stages := make([]types.StageName, 0, idx+1)
	for _, s := range types.PipelineStages[:idx+1] {
		if s == types.StagePackage && (opts.SkipPackage || c.settings.Package.Command == "") {
			continue
		}
		stages = append(stages, s)
	}
	return stages, nil
}

// run is the mutable state of a single Execute call
type run struct {
	id          string
	tracker     *Tracker
	archive     types.Archive
	located     bool
	fingerprint *Fingerprint
	// javaLaunched is set once a record or assemble JVM ran in this run.
	// Packaging does not count, the archive hash covers its output.
	javaLaunched bool
}

// Execute runs the selected stages. The first failure stops the run and
// leaves later stages pending.
func (c *Coordinator) Execute(ctx context.Context, opts Options) (*Report, error) {
	stages, err := c.Stages(opts)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: nothing to run for %s", ErrUnknownStage, opts.Target)
	}

	ctx = pcontext.NewRun(ctx, string(opts.Target))
	log := logger.WithContext(ctx, c.logger)

	r := &run{
		id:      pcontext.GetRunID(ctx),
		tracker: NewTracker(stages...),
	}
	report := &Report{RunID: r.id, Target: opts.Target}
	for _, s := range stages {
		report.Stages = append(report.Stages, &StageReport{Stage: s, Status: types.StageStatusPending})
	}

	defer func() { report.Duration = pcontext.GetDuration(ctx) }()

	log.Info(fmt.Sprintf("Starting AOT pipeline to %s", opts.Target),
		logger.WithField("stages", len(stages)),
		logger.WithField("staleness", c.settings.Staleness))

	for _, sr := range report.Stages {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("pipeline interrupted before %s: %w", sr.Stage, err)
		}

		stageCtx := pcontext.WithStage(ctx, string(sr.Stage))
		err := c.executeStage(stageCtx, r, sr, log.WithStage(string(sr.Stage)))
		sr.Status = r.tracker.Status(sr.Stage)
		report.Archive = r.archive

		if err != nil {
			sr.Err = err
			if c.notifier != nil {
				c.notifier.NotifyFailure(sr.Stage, err)
			}
			return report, fmt.Errorf("%s failed: %w", sr.Stage, err)
		}
	}

	log.Success(fmt.Sprintf("AOT pipeline reached %s", opts.Target),
		logger.WithField("duration", pcontext.GetDuration(ctx).Round(time.Millisecond)))
	if c.notifier != nil {
		c.notifier.NotifySuccess(opts.Target, pcontext.GetDuration(ctx))
	}
	return report, nil
}

func (c *Coordinator) executeStage(ctx context.Context, r *run, sr *StageReport, log logger.Logger) error {
	if err := r.tracker.Transition(sr.Stage, types.StageStatusPending, types.StageStatusRunning); err != nil {
		return err
	}
	startedAt := time.Now()
	c.updateState(sr.Stage, log, func(rec *state.StageRecord) {
		rec.Status = types.StageStatusRunning
		rec.RunID = r.id
		rec.StartedAt = startedAt
		rec.FinishedAt = time.Time{}
		rec.ExitCode = 0
		rec.LastError = ""
		rec.Reused = false
		if c.settings.Toolchain != nil && sr.Stage != types.StagePackage {
			rec.Executable = c.settings.Toolchain.Executable
		}
	})

	var err error
	if sr.Stage == types.StagePackage {
		err = c.packageStage(ctx, r, sr, log)
	} else {
		err = c.javaStage(ctx, r, sr, log)
	}

	final := types.StageStatusSucceeded
	if err != nil {
		final = types.StageStatusFailed
	}
	if terr := r.tracker.Transition(sr.Stage, types.StageStatusRunning, final); terr != nil {
		return errors.Join(err, terr)
	}

	finishedAt := time.Now()
	c.updateState(sr.Stage, log, func(rec *state.StageRecord) {
		rec.Status = final
		rec.FinishedAt = finishedAt
		rec.Duration = finishedAt.Sub(startedAt)
		rec.Reused = sr.Reused
		rec.RunCount++
		if r.located {
			rec.Archive = r.archive.Path
		}
		if sr.Result != nil {
			rec.ExitCode = sr.Result.ExitCode
		}
		if err != nil {
			rec.FailureCount++
			rec.LastError = err.Error()
		}
	})

	if err != nil {
		log.Error("Stage failed", logger.WithField("error", err))
		return err
	}
	if sr.Reused {
		log.Success("Reused outputs of a previous run")
	} else {
		log.Success(fmt.Sprintf("Completed in %s", finishedAt.Sub(startedAt).Round(time.Millisecond)))
	}
	return nil
}

func (c *Coordinator) packageStage(ctx context.Context, r *run, sr *StageReport, log logger.Logger) error {
	inv := PackageInvocation(c.settings.Package.Command, c.settings.ProjectRoot, c.settings.Package.Env)
	if err := c.launch(ctx, r, sr, inv, log); err != nil {
		return err
	}

	// the packaging step must leave exactly one launchable archive behind
	archive, err := c.locator.Locate(c.settings.ArchivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingArtifact, err)
	}
	if err := (Requirement{Path: archive.Path, NonEmpty: true, Producer: types.StagePackage}).Check(); err != nil {
		return err
	}
	r.archive, r.located = archive, true
	return nil
}

func (c *Coordinator) javaStage(ctx context.Context, r *run, sr *StageReport, log logger.Logger) error {
	if c.settings.Toolchain == nil || c.settings.Toolchain.Executable == "" {
		return fmt.Errorf("%w: no toolchain resolved", toolchain.ErrToolchainNotFound)
	}
	if !r.located {
		archive, err := c.locator.Locate(c.settings.ArchivePath)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMissingArtifact, err)
		}
		r.archive, r.located = archive, true
	}

	plan := Plan{
		Executable: c.settings.Toolchain.Executable,
		Archive:    r.archive,
		Artifacts:  c.settings.Artifacts,
		App:        c.settings.App,
	}
	stage, err := plan.Stage(sr.Stage)
	if err != nil {
		return err
	}
	inv := stage.Invocation
	sr.Invocation = &inv

	for _, req := range stage.Consumes {
		if err := req.Check(); err != nil {
			return err
		}
	}

	if len(stage.Produces) > 0 {
		if c.settings.Staleness == types.StalenessReuse && !r.javaLaunched && c.reusable(r, stage, log) {
			sr.Reused = true
			return nil
		}
		if err := c.clearOutputs(stage, log); err != nil {
			return err
		}
	}

	r.javaLaunched = true
	if err := c.launch(ctx, r, sr, inv, log); err != nil {
		return err
	}
	if err := checkProduced(stage); err != nil {
		return err
	}

	if sr.Stage == types.StageAssemble {
		c.writeManifest(r, log)
	}
	return nil
}

func (c *Coordinator) launch(ctx context.Context, r *run, sr *StageReport, inv types.Invocation, log logger.Logger) error {
	if c.launcher == nil {
		return errors.New("no launcher configured")
	}
	sr.Invocation = &inv

	log.Info("Launching",
		logger.WithField("workdir", inv.WorkDir),
		logger.WithField("command", inv.CommandLine()))

	result, err := c.launcher.Launch(ctx, inv, process.LaunchOptions{
		Output: c.output,
		OnStart: func(pid int) {
			log.Debug("Process started", logger.WithField("pid", pid))
		},
	})
	sr.Result = result
	return err
}

// reusable reports whether the stage's outputs match the current inputs
func (c *Coordinator) reusable(r *run, stage Stage, log logger.Logger) bool {
	for _, path := range stage.Produces {
		if size, err := utils.FileSize(path); err != nil || size == 0 {
			log.Debug("Outputs missing, rebuilding")
			return false
		}
	}

	manifest, err := ReadManifest(c.settings.Artifacts.ManifestFile())
	if err != nil {
		log.Warn("Ignoring unreadable manifest", logger.WithField("error", err))
		return false
	}
	if manifest == nil {
		log.Debug("No manifest, rebuilding")
		return false
	}

	fp, err := c.fingerprint(r)
	if err != nil {
		log.Warn("Failed to fingerprint inputs", logger.WithField("error", err))
		return false
	}
	if manifest.Fingerprint != *fp {
		log.Info("Inputs changed since the last assemble, rebuilding")
		return false
	}
	return true
}

func (c *Coordinator) clearOutputs(stage Stage, log logger.Logger) error {
	if err := utils.EnsureDirectory(c.settings.Artifacts.Dir); err != nil {
		return fmt.Errorf("failed to create aot directory: %w", err)
	}
	paths := append([]string{c.settings.Artifacts.ManifestFile()}, stage.Produces...)
	for _, path := range paths {
		if utils.FileExists(path) {
			log.Debug("Removing previous output", logger.WithField("path", path))
		}
		if err := utils.RemoveFile(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

func (c *Coordinator) fingerprint(r *run) (*Fingerprint, error) {
	if r.fingerprint != nil {
		return r.fingerprint, nil
	}
	fp, err := ComputeFingerprint(r.archive.Path, c.settings.Toolchain.Executable, c.settings.Toolchain.Version)
	if err != nil {
		return nil, err
	}
	r.fingerprint = &fp
	return r.fingerprint, nil
}

func (c *Coordinator) writeManifest(r *run, log logger.Logger) {
	fp, err := c.fingerprint(r)
	if err != nil {
		log.Warn("Failed to fingerprint inputs, cache will not be reusable", logger.WithField("error", err))
		return
	}
	m := Manifest{Fingerprint: *fp, RunID: r.id, CreatedAt: time.Now()}
	if err := WriteManifest(c.settings.Artifacts.ManifestFile(), m); err != nil {
		log.Warn("Failed to write manifest", logger.WithField("error", err))
	}
}

func (c *Coordinator) updateState(stage types.StageName, log logger.Logger, fn func(rec *state.StageRecord)) {
	if c.store == nil {
		return
	}
	if err := c.store.Update(stage, fn); err != nil {
		log.Warn("Failed to persist stage state", logger.WithField("error", err))
	}
}
