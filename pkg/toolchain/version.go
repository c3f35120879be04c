package toolchain

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// VersionSpec is a requested Java major version, optionally a lower bound ("24+")
type VersionSpec struct {
	Major   int
	AtLeast bool
}

// ParseVersionSpec parses "25", "24+" or the legacy "1.8" form
func ParseVersionSpec(s string) (VersionSpec, error) {
	raw := strings.TrimSpace(s)
	spec := VersionSpec{}
	if strings.HasSuffix(raw, "+") {
		spec.AtLeast = true
		raw = strings.TrimSuffix(raw, "+")
	}

	major, err := MajorVersion(raw)
	if err != nil {
		return VersionSpec{}, fmt.Errorf("%w: %q", ErrInvalidVersionSpec, s)
	}
	spec.Major = major
	return spec, nil
}

// Matches reports whether a JDK with the given major version satisfies the spec
func (v VersionSpec) Matches(major int) bool {
	if v.AtLeast {
		return major >= v.Major
	}
	return major == v.Major
}

func (v VersionSpec) String() string {
	if v.AtLeast {
		return fmt.Sprintf("%d+", v.Major)
	}
	return strconv.Itoa(v.Major)
}

// MajorVersion extracts the feature release number from a Java version
// string such as "25", "25.0.1", "24-ea" or "1.8.0_392".
func MajorVersion(version string) (int, error) {
	v := strings.TrimSpace(version)
	if strings.HasPrefix(v, "1.") {
		v = strings.TrimPrefix(v, "1.")
	}
	end := strings.IndexFunc(v, func(r rune) bool { return r < '0' || r > '9' })
	if end == 0 {
		return 0, fmt.Errorf("invalid java version %q", version)
	}
	if end > 0 {
		v = v[:end]
	}
	major, err := strconv.Atoi(v)
	if err != nil || major <= 0 {
		return 0, fmt.Errorf("invalid java version %q", version)
	}
	return major, nil
}

// ReadReleaseVersion reads JAVA_VERSION from a JDK's release file
func ReadReleaseVersion(home string) (string, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(home, "release"))
	v.SetConfigType("dotenv")
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("failed to read release file: %w", err)
	}

	version := v.GetString("java_version")
	if version == "" {
		return "", fmt.Errorf("release file in %s has no JAVA_VERSION", home)
	}
	return version, nil
}
