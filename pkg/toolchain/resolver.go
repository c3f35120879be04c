// Package toolchain selects the JDK used by every AOT stage and the benchmark
package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/leyden/aotctl/pkg/logger"
	"github.com/leyden/aotctl/pkg/types"
)

// Toolchain is a resolved JDK installation
type Toolchain struct {
	Home       string `json:"home" yaml:"home"`
	Executable string `json:"executable" yaml:"executable"`
	Version    string `json:"version" yaml:"version"`
	Major      int    `json:"major" yaml:"major"`
}

// Resolver finds a JDK that satisfies a version spec. The ambient java on
// PATH is never consulted.
type Resolver struct {
	// Home is an explicitly configured JDK; when set no other location is searched
	Home string
	// SearchPaths are extra JDK homes or directories containing JDK homes
	SearchPaths []string
	// InstallRoots are the well-known directories that hold JDK installations
	InstallRoots []string
	// Getenv reads environment variables
	Getenv func(string) string

	logger logger.Logger
}

// NewResolver creates a resolver from the java section of the configuration
func NewResolver(cfg types.JavaConfig, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.Discard()
	}
	return &Resolver{
		Home:         cfg.Home,
		SearchPaths:  cfg.SearchPaths,
		InstallRoots: DefaultInstallRoots(),
		Getenv:       os.Getenv,
		logger:       log,
	}
}

// DefaultInstallRoots lists where JDKs are commonly installed
func DefaultInstallRoots() []string {
	roots := []string{"/usr/lib/jvm", "/usr/java", "/opt/java"}
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots,
			filepath.Join(home, ".sdkman", "candidates", "java"),
			filepath.Join(home, ".gradle", "jdks"),
			filepath.Join(home, ".jdks"),
			filepath.Join(home, "Library", "Java", "JavaVirtualMachines"),
		)
	}
	roots = append(roots, "/Library/Java/JavaVirtualMachines")
	return roots
}

// Resolve returns the JDK matching spec. It fails with ErrToolchainNotFound
// when nothing matches.
func (r *Resolver) Resolve(ctx context.Context, spec string) (*Toolchain, error) {
	vs, err := ParseVersionSpec(spec)
	if err != nil {
		return nil, err
	}

	if r.Home != "" {
		tc, err := r.inspect(r.Home)
		if err != nil {
			return nil, fmt.Errorf("%w: configured java.home %s: %v", ErrToolchainNotFound, r.Home, err)
		}
		if !vs.Matches(tc.Major) {
			return nil, fmt.Errorf("%w: configured java.home %s is Java %s, need %s",
				ErrToolchainNotFound, r.Home, tc.Version, vs)
		}
		return tc, nil
	}

	var best *Toolchain
	for _, home := range r.candidates() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tc, err := r.inspect(home)
		if err != nil {
			r.logger.Debug("Skipping JDK candidate",
				logger.WithField("home", home),
				logger.WithField("reason", err))
			continue
		}
		if !vs.Matches(tc.Major) {
			continue
		}
		if !vs.AtLeast {
			return tc, nil
		}
		if best == nil || tc.Major > best.Major {
			best = tc
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: Java %s", ErrToolchainNotFound, vs)
	}
	return best, nil
}

// candidates returns JDK homes in priority order without duplicates
func (r *Resolver) candidates() []string {
	var homes []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p == "" {
			return
		}
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			homes = append(homes, p)
		}
	}

	if r.Getenv != nil {
		add(r.Getenv("JAVA_HOME"))
	}

	for _, p := range r.SearchPaths {
		if isJDKHome(p) {
			add(p)
			continue
		}
		for _, h := range homesUnder(p) {
			add(h)
		}
	}

	for _, root := range r.InstallRoots {
		for _, h := range homesUnder(root) {
			add(h)
		}
	}

	return homes
}

func (r *Resolver) inspect(home string) (*Toolchain, error) {
	exe := filepath.Join(home, "bin", launcherName())
	info, err := os.Stat(exe)
	if err != nil {
		return nil, fmt.Errorf("no launcher: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("launcher %s is a directory", exe)
	}

	version, err := ReadReleaseVersion(home)
	if err != nil {
		return nil, err
	}
	major, err := MajorVersion(version)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(exe)
	if err != nil {
		return nil, err
	}
	absHome, err := filepath.Abs(home)
	if err != nil {
		return nil, err
	}

	return &Toolchain{
		Home:       absHome,
		Executable: abs,
		Version:    version,
		Major:      major,
	}, nil
}

// homesUnder lists JDK homes directly below root, newest name first. macOS
// bundles keep the home in Contents/Home.
func homesUnder(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	var homes []string
	for _, name := range names {
		dir := filepath.Join(root, name)
		if bundle := filepath.Join(dir, "Contents", "Home"); isJDKHome(bundle) {
			homes = append(homes, bundle)
			continue
		}
		if isJDKHome(dir) {
			homes = append(homes, dir)
		}
	}
	return homes
}

func isJDKHome(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "release"))
	return err == nil
}

func launcherName() string {
	if runtime.GOOS == "windows" {
		return "java.exe"
	}
	return "java"
}
