package generation

import "fmt"

// StageError reports a generation stage that could not obtain a model response.
// Malformed responses never produce a StageError; they degrade the draft instead.
type StageError struct {
	Stage Stage
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("generation stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}
