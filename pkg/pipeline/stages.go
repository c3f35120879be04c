package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leyden/aotctl/pkg/artifact"
	"github.com/leyden/aotctl/pkg/types"
)

// AutoExitFlag makes a Spring Boot application start without a web server
// and exit once the context is up, which ends the training run.
const AutoExitFlag = "--spring.main.web-application-type=none"

// RecordArgs builds the training run arguments
func RecordArgs(archiveName, configFile string, trainingArgs []string) []string {
	args := []string{
		"-XX:AOTMode=record",
		"-XX:AOTConfiguration=" + configFile,
		"-jar", archiveName,
		AutoExitFlag,
	}
	for _, arg := range trainingArgs {
		if arg != AutoExitFlag {
			args = append(args, arg)
		}
	}
	return args
}

// AssembleArgs builds the cache creation arguments
func AssembleArgs(archiveName, configFile, cacheFile string) []string {
	return []string{
		"-cp", archiveName,
		"-XX:AOTMode=create",
		"-XX:AOTConfiguration=" + configFile,
		"-XX:AOTCache=" + cacheFile,
		"-Xlog:class+path=info",
	}
}

// RunArgs builds the production launch arguments
func RunArgs(archiveName, cacheFile string, appArgs []string) []string {
	args := []string{
		"-XX:AOTMode=on",
		"-XX:AOTCache=" + cacheFile,
		"-jar", archiveName,
	}
	return append(args, appArgs...)
}

// Requirement is a file a stage needs before it may launch
type Requirement struct {
	Path     string
	NonEmpty bool
	// Producer names the stage expected to create the file
	Producer types.StageName
}

// Stage is one launchable step with its declared inputs and outputs
type Stage struct {
	Name       types.StageName
	Invocation types.Invocation
	Consumes   []Requirement
	Produces   []string
}

// Plan holds everything needed to build the java stages for one archive
type Plan struct {
	Executable string
	Archive    types.Archive
	Artifacts  artifact.Artifacts
	App        types.AppConfig
}

// Record describes the training run. It writes the AOT configuration.
func (p Plan) Record() Stage {
	return Stage{
		Name:       types.StageRecord,
		Invocation: p.invocation(types.StageRecord, RecordArgs(p.Archive.Name, p.Artifacts.ConfigFile, p.App.TrainingArgs)),
		Consumes:   []Requirement{p.archiveRequirement()},
		Produces:   []string{p.Artifacts.ConfigFile},
	}
}

// Assemble describes cache creation from the recorded configuration
func (p Plan) Assemble() Stage {
	return Stage{
		Name:       types.StageAssemble,
		Invocation: p.invocation(types.StageAssemble, AssembleArgs(p.Archive.Name, p.Artifacts.ConfigFile, p.Artifacts.CacheFile)),
		Consumes: []Requirement{
			p.archiveRequirement(),
			{Path: p.Artifacts.ConfigFile, NonEmpty: true, Producer: types.StageRecord},
		},
		Produces: []string{p.Artifacts.CacheFile},
	}
}

// Run describes the production launch using the cache
func (p Plan) Run() Stage {
	return Stage{
		Name:       types.StageRun,
		Invocation: p.invocation(types.StageRun, RunArgs(p.Archive.Name, p.Artifacts.CacheFile, p.App.Args)),
		Consumes: []Requirement{
			p.archiveRequirement(),
			{Path: p.Artifacts.CacheFile, Producer: types.StageAssemble},
		},
	}
}

// Stage returns the java stage with the given name
func (p Plan) Stage(name types.StageName) (Stage, error) {
	switch name {
	case types.StageRecord:
		return p.Record(), nil
	case types.StageAssemble:
		return p.Assemble(), nil
	case types.StageRun:
		return p.Run(), nil
	}
	return Stage{}, fmt.Errorf("%w: %s", ErrUnknownStage, name)
}

func (p Plan) invocation(stage types.StageName, args []string) types.Invocation {
	return types.Invocation{
		Stage:      stage,
		Executable: p.Executable,
		WorkDir:    p.Archive.Dir,
		Args:       args,
		Env:        EnvList(p.App.Env),
	}
}

func (p Plan) archiveRequirement() Requirement {
	return Requirement{Path: p.Archive.Path, NonEmpty: true, Producer: types.StagePackage}
}

// PackageInvocation builds the packaging step. Commands using shell operators
// run through sh -c, anything else is split on whitespace.
func PackageInvocation(command, projectRoot string, env map[string]string) types.Invocation {
	inv := types.Invocation{
		Stage:   types.StagePackage,
		WorkDir: projectRoot,
		Env:     EnvList(env),
	}

	parts := strings.Fields(command)
	if needsShell(command) || len(parts) == 0 {
		inv.Executable = "sh"
		inv.Args = []string{"-c", command}
		return inv
	}
	inv.Executable = parts[0]
	inv.Args = parts[1:]
	return inv
}

func needsShell(command string) bool {
	for _, op := range []string{"&&", "||", "|", ";", ">", "<", "$", "`"} {
		if strings.Contains(command, op) {
			return true
		}
	}
	return false
}

// EnvList converts an env map to sorted KEY=VALUE entries
func EnvList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}

// Check verifies a requirement against the filesystem
func (r Requirement) Check() error {
	info, err := os.Stat(r.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s not found (run %s first)", ErrMissingArtifact, r.Path, r.Producer)
		}
		return fmt.Errorf("%w: %s: %v", ErrMissingArtifact, r.Path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrMissingArtifact, r.Path)
	}
	if r.NonEmpty && info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty (rerun %s)", ErrMissingArtifact, r.Path, r.Producer)
	}
	return nil
}

// checkProduced verifies a stage left its outputs behind
func checkProduced(stage Stage) error {
	for _, path := range stage.Produces {
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			return fmt.Errorf("%w: %s exited successfully but did not write %s", ErrMissingArtifact, stage.Name, filepath.Base(path))
		}
	}
	return nil
}
