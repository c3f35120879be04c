package pipeline

import "errors"

var (
	// ErrMissingArtifact indicates a stage input or output is absent or empty
	ErrMissingArtifact = errors.New("missing artifact")

	// ErrInvalidTransition indicates a stage status change the state machine forbids
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrUnknownStage indicates a stage that is not part of the pipeline
	ErrUnknownStage = errors.New("unknown stage")
)
