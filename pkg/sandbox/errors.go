package sandbox

import "errors"

var (
	// ErrEmptyCommand is returned when a request carries no command
	ErrEmptyCommand = errors.New("empty command")

	// ErrInvalidTimeout is returned when the timeout is invalid
	ErrInvalidTimeout = errors.New("invalid timeout (must be >= 0)")

	// ErrInvalidOutputLimit is returned when the output limit is invalid
	ErrInvalidOutputLimit = errors.New("invalid output limit (must be >= 0)")

	// ErrExecutionTimeout is returned when execution times out
	ErrExecutionTimeout = errors.New("execution timed out")

	// ErrCommandFailed is returned when a command exits with a non-zero status
	ErrCommandFailed = errors.New("command failed")
)
