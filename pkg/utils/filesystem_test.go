package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leyden/aotctl/pkg/utils"
)

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "app.jar")
	os.WriteFile(file, []byte("jar"), 0644)

	if !utils.FileExists(file) {
		t.Error("expected file to exist")
	}
	if utils.FileExists(tmpDir) {
		t.Error("a directory is not a file")
	}
	if utils.FileExists(filepath.Join(tmpDir, "missing.jar")) {
		t.Error("missing file reported as existing")
	}
	if !utils.DirectoryExists(tmpDir) {
		t.Error("expected directory to exist")
	}
}

func TestFileSHA256(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "empty")
	os.WriteFile(file, nil, 0644)

	sum, err := utils.FileSHA256(file)
	if err != nil {
		t.Fatalf("FileSHA256 failed: %v", err)
	}
	// SHA-256 of the empty input
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if sum != want {
		t.Errorf("expected %s, got %s", want, sum)
	}

	if _, err := utils.FileSHA256(filepath.Join(tmpDir, "nope")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRemoveFile(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "aot-cache.jsa")
	os.WriteFile(file, []byte("cache"), 0644)

	if err := utils.RemoveFile(file); err != nil {
		t.Fatalf("RemoveFile failed: %v", err)
	}
	if utils.FileExists(file) {
		t.Error("file still exists")
	}
	if err := utils.RemoveFile(file); err != nil {
		t.Errorf("removing a missing file should not fail: %v", err)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := utils.FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
