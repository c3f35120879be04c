// Package types provides core types and configuration for aotctl
package types

import (
	"fmt"
	"strings"
	"time"
)

// StageName identifies a step of the AOT workflow
type StageName string

const (
	StagePackage   StageName = "package"
	StageRecord    StageName = "record"
	StageAssemble  StageName = "assemble"
	StageRun       StageName = "run"
	StageBenchmark StageName = "benchmark"
)

// PipelineStages lists the chained stages in execution order
var PipelineStages = []StageName{StagePackage, StageRecord, StageAssemble, StageRun}

// ParseStageName converts user input into a StageName
func ParseStageName(s string) (StageName, error) {
	name := StageName(strings.ToLower(strings.TrimSpace(s)))
	switch name {
	case StagePackage, StageRecord, StageAssemble, StageRun, StageBenchmark:
		return name, nil
	}
	return "", fmt.Errorf("unknown stage: %q", s)
}

// StageStatus represents the lifecycle state of a stage
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusSucceeded StageStatus = "succeeded"
	StageStatusFailed    StageStatus = "failed"
)

// IsTerminal reports whether the status can no longer change within a run
func (s StageStatus) IsTerminal() bool {
	return s == StageStatusSucceeded || s == StageStatusFailed
}

// StalenessPolicy decides what happens to hand-off files left by an earlier run
type StalenessPolicy string

const (
	// StalenessOverwrite deletes a stage's outputs before it runs
	StalenessOverwrite StalenessPolicy = "overwrite"
	// StalenessReuse keeps outputs whose recorded fingerprint still matches
	StalenessReuse StalenessPolicy = "reuse"
)

// Archive is the packaged executable artifact shared by all AOT stages
type Archive struct {
	Path string `json:"path" yaml:"path"`
	Name string `json:"name" yaml:"name"`
	Dir  string `json:"dir" yaml:"dir"`
}

// Invocation describes a single child process launch
type Invocation struct {
	Stage      StageName `json:"stage"`
	Executable string    `json:"executable"`
	WorkDir    string    `json:"workDir"`
	Args       []string  `json:"args"`
	Env        []string  `json:"env,omitempty"`
}

// CommandLine renders the invocation for logs
func (i Invocation) CommandLine() string {
	parts := append([]string{i.Executable}, i.Args...)
	return strings.Join(parts, " ")
}

// Config is the aotctl configuration file
type Config struct {
	Version       string             `mapstructure:"version" json:"version" yaml:"version"`
	Java          JavaConfig         `mapstructure:"java" json:"java" yaml:"java"`
	Package       PackageConfig      `mapstructure:"package" json:"package" yaml:"package"`
	Archive       string             `mapstructure:"archive" json:"archive" yaml:"archive"`
	AOT           AOTConfig          `mapstructure:"aot" json:"aot" yaml:"aot"`
	App           AppConfig          `mapstructure:"app" json:"app" yaml:"app"`
	Benchmark     BenchmarkConfig    `mapstructure:"benchmark" json:"benchmark" yaml:"benchmark"`
	Notifications NotificationConfig `mapstructure:"notifications" json:"notifications" yaml:"notifications"`
	Watch         WatchConfig        `mapstructure:"watch" json:"watch" yaml:"watch"`
	Logging       LoggingConfig      `mapstructure:"logging" json:"logging" yaml:"logging"`
}

// JavaConfig selects the toolchain
type JavaConfig struct {
	Version     string   `mapstructure:"version" json:"version" yaml:"version"`
	Home        string   `mapstructure:"home" json:"home,omitempty" yaml:"home,omitempty"`
	SearchPaths []string `mapstructure:"searchPaths" json:"searchPaths,omitempty" yaml:"searchPaths,omitempty"`
}

// PackageConfig describes the optional packaging step
type PackageConfig struct {
	Command string            `mapstructure:"command" json:"command,omitempty" yaml:"command,omitempty"`
	Env     map[string]string `mapstructure:"-" json:"env,omitempty" yaml:"env,omitempty"`
}

// AOTConfig holds the hand-off file layout
type AOTConfig struct {
	Dir        string          `mapstructure:"dir" json:"dir" yaml:"dir"`
	ConfigFile string          `mapstructure:"configFile" json:"configFile" yaml:"configFile"`
	CacheFile  string          `mapstructure:"cacheFile" json:"cacheFile" yaml:"cacheFile"`
	Staleness  StalenessPolicy `mapstructure:"staleness" json:"staleness" yaml:"staleness"`
}

// AppConfig holds application arguments for the training and production launches
type AppConfig struct {
	TrainingArgs []string          `mapstructure:"trainingArgs" json:"trainingArgs,omitempty" yaml:"trainingArgs,omitempty"`
	Args         []string          `mapstructure:"args" json:"args,omitempty" yaml:"args,omitempty"`
	Env          map[string]string `mapstructure:"-" json:"env,omitempty" yaml:"env,omitempty"`
}

// BenchmarkConfig configures the startup benchmark
type BenchmarkConfig struct {
	MainClass        string            `mapstructure:"mainClass" json:"mainClass,omitempty" yaml:"mainClass,omitempty"`
	Classpath        []string          `mapstructure:"classpath" json:"classpath,omitempty" yaml:"classpath,omitempty"`
	LogFile          string            `mapstructure:"logFile" json:"logFile" yaml:"logFile"`
	SystemProperties map[string]string `mapstructure:"-" json:"systemProperties,omitempty" yaml:"systemProperties,omitempty"`
	Args             []string          `mapstructure:"args" json:"args,omitempty" yaml:"args,omitempty"`
	// Explode unpacks the archive into <aot.dir>/exploded before each benchmark
	Explode bool `mapstructure:"explode" json:"explode,omitempty" yaml:"explode,omitempty"`
}

// NotificationConfig toggles desktop notifications
type NotificationConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
}

// WatchConfig configures archive watching
type WatchConfig struct {
	Settle string `mapstructure:"settle" json:"settle" yaml:"settle"`
}

// SettleDelay parses Settle, defaulting to one second
func (w WatchConfig) SettleDelay() (time.Duration, error) {
	if w.Settle == "" {
		return time.Second, nil
	}
	d, err := time.ParseDuration(w.Settle)
	if err != nil {
		return 0, fmt.Errorf("invalid watch.settle %q: %w", w.Settle, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid watch.settle %q: negative duration", w.Settle)
	}
	return d, nil
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level string `mapstructure:"level" json:"level" yaml:"level"`
	File  string `mapstructure:"file" json:"file,omitempty" yaml:"file,omitempty"`
}
