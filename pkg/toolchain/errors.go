package toolchain

import "errors"

var (
	// ErrToolchainNotFound indicates no installed JDK satisfies the requested version
	ErrToolchainNotFound = errors.New("no matching java toolchain")

	// ErrInvalidVersionSpec indicates the requested version could not be parsed
	ErrInvalidVersionSpec = errors.New("invalid java version spec")
)
