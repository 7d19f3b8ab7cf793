package host

import (
	"errors"
	"fmt"
)

// Usage errors returned directly to the caller.
var (
	// ErrNotInitialized is returned when RegisterUnit or Run is called
	// before Initialize.
	ErrNotInitialized = errors.New("host: Initialize must be called first")

	// ErrAlreadyRun is returned when Run is called more than once, or when
	// a unit is registered after Run.
	ErrAlreadyRun = errors.New("host: Run has already been called")

	// ErrDuplicateUnit is returned when a unit name is registered twice.
	ErrDuplicateUnit = errors.New("host: duplicate unit name")

	// ErrInvalidUnit is returned for an empty name or nil factory.
	ErrInvalidUnit = errors.New("host: invalid unit registration")

	// ErrLocked is returned when another process holds the host lock file.
	ErrLocked = errors.New("host: lock file held by another instance")
)

// Host failures, wrapped in *HostError.
var (
	ErrHostBuild = errors.New("host: build failed")
	ErrHostRun   = errors.New("host: run failed")
)

// Phase names the stage of Run that failed.
type Phase string

const (
	PhaseBuild Phase = "build"
	PhaseRun   Phase = "run"
)

// HostError reports a failure to build or run the host.
// errors.Is matches ErrHostBuild or ErrHostRun, and the cause.
type HostError struct {
	Phase Phase
	Err   error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("host %s failed: %v", e.Phase, e.Err)
}

// Unwrap returns the phase sentinel and the cause.
func (e *HostError) Unwrap() []error {
	if e.Phase == PhaseBuild {
		return []error{ErrHostBuild, e.Err}
	}
	return []error{ErrHostRun, e.Err}
}
