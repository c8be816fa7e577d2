// Package workflow implements the dual-document analysis engine: the run
// state model, stage implementations, routers, human review handling and
// the checkpointed driver loop.
package workflow

import (
	"errors"
	"fmt"
)

// Fatal errors abort the run. Business failures of the judgment service are
// never returned from stages; they are captured in the state.
var (
	ErrInvariant       = errors.New("run state invariant violated")
	ErrMissingDocument = errors.New("required document path missing")
	ErrUnknownStage    = errors.New("unknown stage")
	ErrExportFailed    = errors.New("export failed")
	ErrCancelled       = errors.New("run cancelled")
	ErrInterrupted     = errors.New("run interrupted")
)

// Engine and review errors.
var (
	ErrRunNotFound      = errors.New("run not found")
	ErrRunExists        = errors.New("run already exists")
	ErrRunActive        = errors.New("run is already executing")
	ErrRunFinished      = errors.New("run has already finished")
	ErrNotSuspended     = errors.New("run is not suspended for review")
	ErrInvalidReview    = errors.New("invalid review response")
	ErrFieldNotEditable = errors.New("field is not editable")
	ErrInvalidStage     = errors.New("invalid stage")
)

// Per-item failures captured into fallback values.
var (
	ErrInvalidVerdict  = errors.New("invalid verdict")
	ErrCollaborator    = errors.New("judgment service call failed")
	ErrInvalidResponse = errors.New("invalid judgment response")
)

// RunError is a fatal error annotated with the run and the stage it
// occurred in.
type RunError struct {
	RunID string
	Stage StageName
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed at %s: %v", e.RunID, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
