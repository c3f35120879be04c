// Package benchmark measures application startup under unified JVM logging
package benchmark

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/leyden/aotctl/pkg/types"
)

// DefaultLogFile is where the unified log is written, relative to the project root
const DefaultLogFile = "gc-benchmark.log"

// DefaultSystemProperties are passed unless overridden
var DefaultSystemProperties = map[string]string{
	"spring.main.log-startup-info": "true",
}

// Options describe one benchmark launch
type Options struct {
	ProjectRoot      string
	MainClass        string
	Classpath        []string
	LogFile          string
	SystemProperties map[string]string
	Args             []string
	Env              []string
	// SampleInterval is the period of resident memory sampling
	SampleInterval time.Duration
}

// OptionsFromConfig builds options from the benchmark section of the configuration
func OptionsFromConfig(projectRoot string, cfg types.BenchmarkConfig, env map[string]string) Options {
	props := make(map[string]string, len(DefaultSystemProperties)+len(cfg.SystemProperties))
	for k, v := range DefaultSystemProperties {
		props[k] = v
	}
	for k, v := range cfg.SystemProperties {
		props[k] = v
	}

	envList := make([]string, 0, len(env))
	for k, v := range env {
		envList = append(envList, k+"="+v)
	}
	sort.Strings(envList)

	return Options{
		ProjectRoot:      projectRoot,
		MainClass:        cfg.MainClass,
		Classpath:        cfg.Classpath,
		LogFile:          cfg.LogFile,
		SystemProperties: props,
		Args:             cfg.Args,
		Env:              envList,
	}
}

// Validate reports missing required settings
func (o Options) Validate() error {
	if strings.TrimSpace(o.MainClass) == "" {
		return fmt.Errorf("%w: benchmark.mainClass is required", ErrNotConfigured)
	}
	if len(o.Classpath) == 0 {
		return fmt.Errorf("%w: benchmark.classpath is required", ErrNotConfigured)
	}
	return nil
}

// LogName is the log file as handed to the JVM
func (o Options) LogName() string {
	if o.LogFile == "" {
		return DefaultLogFile
	}
	return o.LogFile
}

// LogPath is the absolute location of the unified log
func (o Options) LogPath() string {
	name := o.LogName()
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(o.ProjectRoot, name)
}

// XlogOption enables gc, safepoint and class loading logging into logFile
func XlogOption(logFile string) string {
	return "-Xlog:gc*,safepoint,class+load=info:file=" + logFile + ":time,level,tags"
}

// Args builds the JVM arguments for a benchmark launch
func Args(o Options) []string {
	args := []string{XlogOption(o.LogName())}

	keys := make([]string, 0, len(o.SystemProperties))
	for k := range o.SystemProperties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, fmt.Sprintf("-D%s=%s", k, o.SystemProperties[k]))
	}

	args = append(args, "-cp", strings.Join(o.Classpath, string(os.PathListSeparator)), o.MainClass)
	return append(args, o.Args...)
}
