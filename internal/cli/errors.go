package cli

import "errors"

var (
	// ErrUnsuccessful is returned when an operation ran but at least one
	// package did not reach a positive outcome. The result is already printed.
	ErrUnsuccessful = errors.New("operation was not successful")

	// ErrAborted is returned when the user declines a confirmation prompt.
	ErrAborted = errors.New("operation aborted by user")
)
