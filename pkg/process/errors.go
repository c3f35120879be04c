package process

import (
	"errors"
	"fmt"

	"github.com/leyden/aotctl/pkg/types"
)

// ErrProcessFailed indicates a child process exited with a non-zero status
var ErrProcessFailed = errors.New("process exited with non-zero status")

// ExitError reports the exit status of a failed stage process
type ExitError struct {
	Stage    types.StageName
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.Stage, ErrProcessFailed, e.ExitCode)
}

// Unwrap lets errors.Is match ErrProcessFailed
func (e *ExitError) Unwrap() error {
	return ErrProcessFailed
}
