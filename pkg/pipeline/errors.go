package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNoModel is returned when the input model could not be acquired.
	ErrNoModel = errors.New("no input model")
	// ErrMissingParameter is returned when a required input parameter is unset.
	ErrMissingParameter = errors.New("missing required input parameter")
	// ErrValidationFailed is returned when a validator reports an invalid
	// configuration and semantic validation is not skipped.
	ErrValidationFailed = errors.New("configuration validation failed")
	// ErrBackend is returned when a backend cannot be resolved or instantiated.
	ErrBackend = errors.New("backend unavailable")
	// ErrInvalidPlan is returned when the process tree cannot be built.
	ErrInvalidPlan = errors.New("invalid process tree")
	// ErrBackendPanic wraps a panic raised inside a backend.
	ErrBackendPanic = errors.New("backend panicked")
)

// Exit codes of aborted runs.
const (
	ExitAbort = 1
)

// AbortError terminates the whole run.
type AbortError struct {
	Code int
	Err  error
}

// Abort wraps err into an AbortError with the default exit code.
func Abort(err error) *AbortError {
	return &AbortError{Code: ExitAbort, Err: err}
}

func (e *AbortError) Error() string {
	return e.Err.Error()
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

func (e *AbortError) String() string {
	return fmt.Sprintf("code=%d err=%v", e.Code, e.Err)
}

// IsAbort reports whether err terminates the run.
func IsAbort(err error) bool {
	var abort *AbortError
	return errors.As(err, &abort)
}
