package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/leyden/aotctl/pkg/utils"
)

// Fingerprint identifies the inputs an AOT cache was built from
type Fingerprint struct {
	ArchiveSHA256 string `json:"archiveSha256"`
	ArchiveSize   int64  `json:"archiveSize"`
	Executable    string `json:"executable"`
	JavaVersion   string `json:"javaVersion"`
}

// Manifest is the fingerprint plus bookkeeping written after assemble
type Manifest struct {
	Fingerprint
	RunID     string    `json:"runId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ComputeFingerprint hashes the archive and records the toolchain identity
func ComputeFingerprint(archivePath, executable, javaVersion string) (Fingerprint, error) {
	size, err := utils.FileSize(archivePath)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("failed to stat archive: %w", err)
	}
	sum, err := utils.FileSHA256(archivePath)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("failed to hash archive: %w", err)
	}
	return Fingerprint{
		ArchiveSHA256: sum,
		ArchiveSize:   size,
		Executable:    executable,
		JavaVersion:   javaVersion,
	}, nil
}

// ReadManifest loads the manifest at path. A missing file returns nil, nil.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// WriteManifest stores m at path atomically
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename manifest: %w", err)
	}
	return nil
}
