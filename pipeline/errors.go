package pipeline

import (
	"errors"
	"fmt"
)

// ErrInputMissing indicates a required input path was not provided.
var ErrInputMissing = errors.New("input file not provided")

// ErrAlreadyRunning rejects re-entrant invocation while a run is in flight.
var ErrAlreadyRunning = errors.New("processing already in progress")

// StageError wraps a fatal error with the stage it originated from. Every
// stage error is terminal for the run; nothing is retried and no partial
// output is produced.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }
