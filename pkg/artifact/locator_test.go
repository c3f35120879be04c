package artifact_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leyden/aotctl/pkg/artifact"
	"github.com/leyden/aotctl/pkg/types"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("PK"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLocate_File(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "build", "libs", "app.jar"))

	archive, err := artifact.NewLocator(root).Locate("build/libs/app.jar")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}

	if archive.Path != filepath.Join(root, "build", "libs", "app.jar") {
		t.Errorf("unexpected path %s", archive.Path)
	}
	if archive.Name != "app.jar" {
		t.Errorf("expected name app.jar, got %s", archive.Name)
	}
	if archive.Dir != filepath.Join(root, "build", "libs") {
		t.Errorf("unexpected dir %s", archive.Dir)
	}
}

func TestLocate_MissingFileIsNotValidated(t *testing.T) {
	root := t.TempDir()

	archive, err := artifact.NewLocator(root).Locate("build/libs/app.jar")
	if err != nil {
		t.Fatalf("Locate should not check existence of a file path: %v", err)
	}
	if archive.Name != "app.jar" {
		t.Errorf("expected name app.jar, got %s", archive.Name)
	}
}

func TestLocate_Directory(t *testing.T) {
	tests := []struct {
		name    string
		files   []string
		want    string
		wantErr error
	}{
		{
			name:  "single boot jar with companions",
			files: []string{"demo-0.0.1-SNAPSHOT.jar", "demo-0.0.1-SNAPSHOT-plain.jar", "demo-0.0.1-SNAPSHOT-sources.jar", "demo-0.0.1-SNAPSHOT-javadoc.jar", "README.txt"},
			want:  "demo-0.0.1-SNAPSHOT.jar",
		},
		{
			name:    "empty directory",
			files:   nil,
			wantErr: artifact.ErrArchiveNotFound,
		},
		{
			name:    "only companions",
			files:   []string{"demo-plain.jar"},
			wantErr: artifact.ErrArchiveNotFound,
		},
		{
			name:    "two candidates",
			files:   []string{"a.jar", "b.jar"},
			wantErr: artifact.ErrAmbiguousArchive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			libs := filepath.Join(root, "build", "libs")
			os.MkdirAll(libs, 0755)
			for _, f := range tt.files {
				touch(t, filepath.Join(libs, f))
			}

			archive, err := artifact.NewLocator(root).Locate("build/libs")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Locate failed: %v", err)
			}
			if archive.Name != tt.want {
				t.Errorf("expected %s, got %s", tt.want, archive.Name)
			}
			if archive.Dir != libs {
				t.Errorf("expected dir %s, got %s", libs, archive.Dir)
			}
		})
	}
}

func TestLocate_Empty(t *testing.T) {
	_, err := artifact.NewLocator(t.TempDir()).Locate("")
	if !errors.Is(err, artifact.ErrArchiveNotFound) {
		t.Errorf("expected ErrArchiveNotFound, got %v", err)
	}
}

func TestArtifacts(t *testing.T) {
	root := t.TempDir()
	loc := artifact.NewLocator(root)

	arts, err := loc.Artifacts(types.AOTConfig{
		Dir:        "build/aot",
		ConfigFile: "aot-config.json",
		CacheFile:  "/var/cache/app.jsa",
	})
	if err != nil {
		t.Fatalf("Artifacts failed: %v", err)
	}

	aotDir := filepath.Join(root, "build", "aot")
	if arts.Dir != aotDir {
		t.Errorf("expected dir %s, got %s", aotDir, arts.Dir)
	}
	if arts.ConfigFile != filepath.Join(aotDir, "aot-config.json") {
		t.Errorf("unexpected config file %s", arts.ConfigFile)
	}
	if arts.CacheFile != "/var/cache/app.jsa" {
		t.Errorf("absolute cache path should be kept, got %s", arts.CacheFile)
	}
	if arts.ManifestFile() != filepath.Join(aotDir, "aot-manifest.json") {
		t.Errorf("unexpected manifest path %s", arts.ManifestFile())
	}
}
