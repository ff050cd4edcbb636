package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrTrivialInput rejects input below the minimum length before any model call.
	ErrTrivialInput = errors.New("input too short")
	// ErrStageFailed means a stage exhausted its model fallback list.
	ErrStageFailed = errors.New("stage failed")
	// ErrNoModels means a stage was configured without candidate models.
	ErrNoModels = errors.New("no candidate models configured")
)

// StageError describes a stage that exhausted every candidate model.
// It unwraps to ErrStageFailed and to the last client error.
type StageError struct {
	Stage    StageName
	Attempts int
	Last     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed after %d attempt(s): %v", e.Stage, e.Attempts, e.Last)
}

func (e *StageError) Unwrap() []error {
	return []error{ErrStageFailed, e.Last}
}

// TrivialInputError reports the rejected length and the required minimum.
type TrivialInputError struct {
	What string
	Got  int
	Min  int
}

func (e *TrivialInputError) Error() string {
	return fmt.Sprintf("%s too short: %d characters, need more than %d", e.What, e.Got, e.Min)
}

func (e *TrivialInputError) Unwrap() error { return ErrTrivialInput }
