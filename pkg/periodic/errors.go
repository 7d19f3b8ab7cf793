package periodic

import (
	"context"
	"errors"
	"fmt"
)

// Phase names a lifecycle hook.
type Phase string

const (
	PhaseStart Phase = "start"
	PhaseTick  Phase = "tick"
	PhaseStop  Phase = "stop"
)

var (
	// ErrStartupFailure marks a Start hook failure. It is the only unit
	// failure returned across the runtime boundary.
	ErrStartupFailure = errors.New("periodic: startup failure")

	// ErrTickFailure marks a Tick hook failure. Logged, never returned.
	ErrTickFailure = errors.New("periodic: tick failure")

	// ErrShutdownFailure marks a Stop hook failure. Logged, never returned.
	ErrShutdownFailure = errors.New("periodic: shutdown failure")

	// ErrAlreadyStarted is returned when Start is called a second time.
	ErrAlreadyStarted = errors.New("periodic: already started")
)

// PhaseError reports a hook failure together with the unit and phase.
// errors.Is matches both the phase sentinel and the underlying cause.
type PhaseError struct {
	Unit  string
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("periodic: unit %q %s failed: %v", e.Unit, e.Phase, e.Err)
}

// Unwrap returns the phase sentinel and the cause.
func (e *PhaseError) Unwrap() []error {
	return []error{phaseSentinel(e.Phase), e.Err}
}

func phaseSentinel(p Phase) error {
	switch p {
	case PhaseStart:
		return ErrStartupFailure
	case PhaseTick:
		return ErrTickFailure
	default:
		return ErrShutdownFailure
	}
}

// IsCancellation reports whether err is the expected result of ctx being
// cancelled, as opposed to a genuine failure.
func IsCancellation(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
