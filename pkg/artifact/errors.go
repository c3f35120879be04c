package artifact

import "errors"

var (
	// ErrArchiveNotFound indicates no executable archive exists at the configured location
	ErrArchiveNotFound = errors.New("archive not found")

	// ErrAmbiguousArchive indicates a directory holds more than one candidate archive
	ErrAmbiguousArchive = errors.New("more than one candidate archive")
)
