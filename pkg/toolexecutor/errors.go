package toolexecutor

import (
	"errors"
	"strings"
)

var (
	// ErrUnknownTool is returned when a step names a tool that is not registered
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidDescriptor is returned when a tool descriptor cannot be registered
	ErrInvalidDescriptor = errors.New("invalid tool descriptor")

	// ErrInvalidCapability is returned for capability names outside the closed set
	ErrInvalidCapability = errors.New("invalid capability")

	// ErrPathDenied is returned when a path falls under a deny root
	ErrPathDenied = errors.New("denied path")

	// ErrPathNotAllowed is returned when a path falls under no allow root
	ErrPathNotAllowed = errors.New("path not allowed")

	// ErrCapabilitiesDenied is returned when a tool needs capabilities the policy withholds
	ErrCapabilitiesDenied = errors.New("capabilities not allowed")

	// ErrConfirmationRejected is returned when a mutation is not confirmed
	ErrConfirmationRejected = errors.New("user rejected mutation")

	// ErrHandler wraps failures surfaced by a tool implementation
	ErrHandler = errors.New("tool handler failed")
)

// CapabilityError names every capability a policy withheld from a tool.
type CapabilityError struct {
	Tool    string
	Missing []Capability
}

func (e *CapabilityError) Error() string {
	names := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		names[i] = string(c)
	}
	return ErrCapabilitiesDenied.Error() + ": " + strings.Join(names, ",")
}

func (e *CapabilityError) Unwrap() error {
	return ErrCapabilitiesDenied
}
