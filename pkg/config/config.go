// Package config loads, validates and writes aotctl configuration
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/leyden/aotctl/pkg/artifact"
	"github.com/leyden/aotctl/pkg/benchmark"
	"github.com/leyden/aotctl/pkg/toolchain"
	"github.com/leyden/aotctl/pkg/types"
)

const (
	// FileName is the configuration file looked up in the project root
	FileName = "aotctl.yaml"
	// EnvPrefix prefixes environment overrides, e.g. AOTCTL_JAVA_VERSION
	EnvPrefix = "AOTCTL"
	// CurrentVersion is the configuration schema version
	CurrentVersion = "1"
)

// ErrInvalidConfig indicates a configuration that cannot drive a run
var ErrInvalidConfig = errors.New("invalid configuration")

var searchNames = []string{"aotctl.yaml", "aotctl.yml", "aotctl.json"}

// Manager handles configuration operations
type Manager struct {
	projectRoot string
}

// NewManager creates a configuration manager for projectRoot
func NewManager(projectRoot string) *Manager {
	return &Manager{projectRoot: projectRoot}
}

// Find returns the configuration file in the project root, or "" when there is none
func (m *Manager) Find() string {
	for _, name := range searchNames {
		path := filepath.Join(m.projectRoot, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Load reads path (or the discovered file when path is empty), applies
// defaults and AOTCTL_ environment overrides and validates the result. It
// returns the file actually used, which is empty when running on defaults.
func (m *Manager) Load(path string) (*types.Config, string, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if path == "" {
		path = m.Find()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, path, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, path, fmt.Errorf("failed to decode config: %w", err)
	}
	if path != "" {
		if err := readVerbatimMaps(path, &cfg); err != nil {
			return nil, path, err
		}
	}
	if err := Validate(&cfg); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

// viper lowercases keys and splits them on dots, which breaks environment
// variable and system property names, so these maps bypass viper
type verbatimMaps struct {
	Package struct {
		Env map[string]string `json:"env" yaml:"env"`
	} `json:"package" yaml:"package"`
	App struct {
		Env map[string]string `json:"env" yaml:"env"`
	} `json:"app" yaml:"app"`
	Benchmark struct {
		SystemProperties map[string]string `json:"systemProperties" yaml:"systemProperties"`
	} `json:"benchmark" yaml:"benchmark"`
}

func readVerbatimMaps(path string, cfg *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var maps verbatimMaps
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &maps)
	} else {
		err = yaml.Unmarshal(data, &maps)
	}
	if err != nil {
		return fmt.Errorf("failed to decode config maps: %w", err)
	}
	cfg.Package.Env = maps.Package.Env
	cfg.App.Env = maps.App.Env
	cfg.Benchmark.SystemProperties = maps.Benchmark.SystemProperties
	return nil
}

// SetDefaults registers every known key so environment overrides apply to it.
// List keys without a default are only bound to the environment.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("java.version", d.Java.Version)
	v.SetDefault("java.home", d.Java.Home)
	v.SetDefault("package.command", d.Package.Command)
	v.SetDefault("archive", d.Archive)
	v.SetDefault("aot.dir", d.AOT.Dir)
	v.SetDefault("aot.configFile", d.AOT.ConfigFile)
	v.SetDefault("aot.cacheFile", d.AOT.CacheFile)
	v.SetDefault("aot.staleness", string(d.AOT.Staleness))
	v.SetDefault("benchmark.mainClass", d.Benchmark.MainClass)
	v.SetDefault("benchmark.logFile", d.Benchmark.LogFile)
	v.SetDefault("benchmark.explode", d.Benchmark.Explode)
	v.SetDefault("notifications.enabled", d.Notifications.Enabled)
	v.SetDefault("watch.settle", d.Watch.Settle)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)

	for _, key := range []string{"java.searchPaths", "app.trainingArgs", "app.args", "benchmark.classpath", "benchmark.args"} {
		_ = v.BindEnv(key)
	}
}

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() *types.Config {
	return &types.Config{
		Version: CurrentVersion,
		Java: types.JavaConfig{
			Version: "25",
		},
		Archive: "build/libs",
		AOT: types.AOTConfig{
			Dir:        "build/aot",
			ConfigFile: "aot-config.json",
			CacheFile:  "aot-cache.jsa",
			Staleness:  types.StalenessOverwrite,
		},
		Benchmark: types.BenchmarkConfig{
			LogFile: "gc-benchmark.log",
		},
		Notifications: types.NotificationConfig{
			Enabled: true,
		},
		Watch: types.WatchConfig{
			Settle: "1s",
		},
		Logging: types.LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks a decoded configuration
func Validate(cfg *types.Config) error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch cfg.Version {
	case CurrentVersion, "1.0":
	default:
		add("unsupported config version %q", cfg.Version)
	}

	if _, err := toolchain.ParseVersionSpec(cfg.Java.Version); err != nil {
		add("java.version: %v", err)
	}
	if strings.TrimSpace(cfg.Archive) == "" {
		add("archive is required")
	}

	if cfg.AOT.Dir == "" {
		add("aot.dir is required")
	}
	if cfg.AOT.ConfigFile == "" {
		add("aot.configFile is required")
	}
	if cfg.AOT.CacheFile == "" {
		add("aot.cacheFile is required")
	}
	if cfg.AOT.ConfigFile != "" && cfg.AOT.ConfigFile == cfg.AOT.CacheFile {
		add("aot.configFile and aot.cacheFile must differ")
	}
	switch cfg.AOT.Staleness {
	case types.StalenessOverwrite, types.StalenessReuse, "":
	default:
		add("aot.staleness must be %q or %q, got %q", types.StalenessOverwrite, types.StalenessReuse, cfg.AOT.Staleness)
	}

	if _, err := cfg.Watch.SettleDelay(); err != nil {
		add("%v", err)
	}
	if cfg.Logging.Level != "" {
		if _, err := logrus.ParseLevel(cfg.Logging.Level); err != nil {
			add("logging.level: %v", err)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// DetectProject fills in the packaging command and archive location for a
// Gradle or Maven project found in projectRoot
func DetectProject(projectRoot string, cfg *types.Config) string {
	exists := func(name string) bool {
		_, err := os.Stat(filepath.Join(projectRoot, name))
		return err == nil
	}

	kind := ""
	switch {
	case exists("gradlew"):
		cfg.Package.Command = "./gradlew bootJar"
		cfg.Archive = "build/libs"
		cfg.AOT.Dir = "build/aot"
		kind = "gradle"
	case exists("build.gradle.kts") || exists("build.gradle"):
		cfg.Package.Command = "gradle bootJar"
		cfg.Archive = "build/libs"
		cfg.AOT.Dir = "build/aot"
		kind = "gradle"
	case exists("mvnw"):
		cfg.Package.Command = "./mvnw -q package -DskipTests"
		cfg.Archive = "target"
		cfg.AOT.Dir = "target/aot"
		kind = "maven"
	case exists("pom.xml"):
		cfg.Package.Command = "mvn -q package -DskipTests"
		cfg.Archive = "target"
		cfg.AOT.Dir = "target/aot"
		kind = "maven"
	}
	if kind == "" {
		return ""
	}

	// bootJar and spring-boot:repackage both nest dependencies under BOOT-INF/lib
	cfg.Benchmark.Explode = true
	cfg.Benchmark.Classpath = benchmark.BootClasspath(filepath.Join(cfg.AOT.Dir, artifact.ExplodedDirName))
	return kind
}

// Write stores cfg as YAML at path
func Write(path string, cfg *types.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
