package pipeline

import (
	"errors"
	"fmt"
)

// ErrDuplicateStage and ErrUnknownDependency report malformed graphs.
var (
	ErrDuplicateStage    = errors.New("duplicate stage id")
	ErrUnknownDependency = errors.New("unknown dependency")
)

// StageError attributes a failure to the stage that produced it.
type StageError struct {
	ID  string
	Key string
	Err error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Message is the worker's own message, without the stage key.
func (e *StageError) Message() string {
	if e.Err == nil {
		return "unknown error"
	}
	return e.Err.Error()
}
