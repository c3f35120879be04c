// Package artifact resolves the packaged archive and the AOT hand-off file paths
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leyden/aotctl/pkg/types"
)

// ExplodedDirName is the directory under the AOT directory holding the unpacked archive
const ExplodedDirName = "exploded"

// Companion jars produced next to the executable archive that must never be launched
var ignoredSuffixes = []string{"-plain.jar", "-sources.jar", "-javadoc.jar"}

// Locator turns configured paths into absolute artifact locations
type Locator struct {
	ProjectRoot string
}

// NewLocator creates a locator rooted at projectRoot
func NewLocator(projectRoot string) *Locator {
	return &Locator{ProjectRoot: projectRoot}
}

// Locate resolves the archive. path may name the archive itself or the
// directory the packaging step writes into.
func (l *Locator) Locate(path string) (types.Archive, error) {
	if path == "" {
		return types.Archive{}, fmt.Errorf("%w: no archive configured", ErrArchiveNotFound)
	}

	abs, err := filepath.Abs(l.resolve(path))
	if err != nil {
		return types.Archive{}, fmt.Errorf("failed to resolve archive path: %w", err)
	}

	info, err := os.Stat(abs)
	if err == nil && info.IsDir() {
		abs, err = findArchive(abs)
		if err != nil {
			return types.Archive{}, err
		}
	}

	return NewArchive(abs), nil
}

// NewArchive derives name and parent directory from an absolute archive path.
// The file is not required to exist.
func NewArchive(absPath string) types.Archive {
	return types.Archive{
		Path: absPath,
		Name: filepath.Base(absPath),
		Dir:  filepath.Dir(absPath),
	}
}

// Artifacts holds the absolute paths of the files handed between stages
type Artifacts struct {
	Dir        string
	ConfigFile string
	CacheFile  string
}

// ManifestFile is where the fingerprint of the last successful assemble is kept
func (a Artifacts) ManifestFile() string {
	return filepath.Join(a.Dir, "aot-manifest.json")
}

// ExplodedDir receives the unpacked archive for classpath launches
func (a Artifacts) ExplodedDir() string {
	return filepath.Join(a.Dir, ExplodedDirName)
}

// LogDir holds one log per stage
func (a Artifacts) LogDir() string {
	return filepath.Join(a.Dir, "logs")
}

// StateDir holds per-stage state records
func (a Artifacts) StateDir() string {
	return filepath.Join(a.Dir, ".aotctl", "state")
}

// Artifacts resolves the hand-off layout described by cfg
func (l *Locator) Artifacts(cfg types.AOTConfig) (Artifacts, error) {
	dir, err := filepath.Abs(l.resolve(cfg.Dir))
	if err != nil {
		return Artifacts{}, fmt.Errorf("failed to resolve aot dir: %w", err)
	}
	return Artifacts{
		Dir:        dir,
		ConfigFile: joinUnlessAbs(dir, cfg.ConfigFile),
		CacheFile:  joinUnlessAbs(dir, cfg.CacheFile),
	}, nil
}

func (l *Locator) resolve(path string) string {
	if filepath.IsAbs(path) || l.ProjectRoot == "" {
		return path
	}
	return filepath.Join(l.ProjectRoot, path)
}

func joinUnlessAbs(dir, name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(dir, name)
}

func findArchive(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read archive directory: %w", err)
	}

	var candidates []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !IsLaunchable(name) {
			continue
		}
		candidates = append(candidates, name)
	}
	sort.Strings(candidates)

	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w: no jar in %s", ErrArchiveNotFound, dir)
	case 1:
		return filepath.Join(dir, candidates[0]), nil
	default:
		return "", fmt.Errorf("%w in %s: %s", ErrAmbiguousArchive, dir, strings.Join(candidates, ", "))
	}
}

// IsLaunchable reports whether name is a jar that is not a companion archive
func IsLaunchable(name string) bool {
	return strings.HasSuffix(name, ".jar") && !isCompanion(name)
}

func isCompanion(name string) bool {
	for _, suffix := range ignoredSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
