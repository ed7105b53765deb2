package manager

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrBackendNotFound      = errors.New("no usable package manager found")
	ErrCommandExecution     = errors.New("command could not be executed")
	ErrTimeout              = errors.New("operation timed out")
	ErrUnsupportedOperation = errors.New("operation not supported")
	ErrBackendFailure       = errors.New("package manager failed")
	ErrInvalidRequest       = errors.New("invalid operation request")
)

// BackendNotFoundError is returned when detection finds no usable backend.
type BackendNotFoundError struct {
	Candidates []string // names that were probed
}

func (e *BackendNotFoundError) Error() string {
	if len(e.Candidates) == 0 {
		return ErrBackendNotFound.Error()
	}
	return fmt.Sprintf("%s (tried: %s)", ErrBackendNotFound, strings.Join(e.Candidates, ", "))
}

func (e *BackendNotFoundError) Is(target error) bool { return target == ErrBackendNotFound }

// CommandExecutionError is returned when an executable cannot be started.
type CommandExecutionError struct {
	Command string
	Err     error
}

func (e *CommandExecutionError) Error() string {
	return fmt.Sprintf("cannot execute %s: %v", e.Command, e.Err)
}

func (e *CommandExecutionError) Unwrap() error { return e.Err }

func (e *CommandExecutionError) Is(target error) bool { return target == ErrCommandExecution }

// TimeoutError is returned when a subprocess exceeds its time budget.
// The child process has been killed; no result is available.
type TimeoutError struct {
	Command string
	Timeout time.Duration
	Elapsed time.Duration
	Err     error // the context error, if any
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s timed out after %s", e.Command, e.Timeout)
	}
	return fmt.Sprintf("%s interrupted after %s", e.Command, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// UnsupportedOperationError is returned when a backend does not implement
// the requested operation.
type UnsupportedOperationError struct {
	Backend   string
	Operation Operation
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Backend, e.Operation)
}

func (e *UnsupportedOperationError) Is(target error) bool { return target == ErrUnsupportedOperation }

// BackendError is returned when the backend failed in a way unrelated to any
// single package, e.g. an interrupted dpkg or a crashed process.
type BackendError struct {
	Backend  string
	ExitCode int
	Reason   string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s failed (exit %d): %s", e.Backend, e.ExitCode, e.Reason)
}

func (e *BackendError) Is(target error) bool { return target == ErrBackendFailure }

// IsManagerError reports whether err belongs to the aggregate taxonomy.
func IsManagerError(err error) bool {
	return errors.Is(err, ErrBackendNotFound) ||
		errors.Is(err, ErrCommandExecution) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnsupportedOperation) ||
		errors.Is(err, ErrBackendFailure)
}
