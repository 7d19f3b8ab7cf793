package lifecycle

import "context"

// State represents the lifecycle state of a hosted unit.
type State int

const (
	StateCreated State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateFaulted
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	case StateFaulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFaulted
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(unit string, previous, current State, reason string)
}

// EventEmitterFunc adapts a function to EventEmitter.
type EventEmitterFunc func(unit string, previous, current State, reason string)

// OnStateChange calls f.
func (f EventEmitterFunc) OnStateChange(unit string, previous, current State, reason string) {
	f(unit, previous, current, reason)
}

// Tracker validates and records the state of one unit and waits for its
// background workers. Machine is the implementation.
type Tracker interface {
	// State returns the current lifecycle state.
	State() State

	// TransitionTo attempts to transition to a new state.
	// Returns an error if the transition is not valid.
	TransitionTo(newState State, reason string) error

	// Wait blocks until every registered worker is done or ctx ends.
	Wait(ctx context.Context) error

	// AddWorker increments the worker count.
	AddWorker()

	// WorkerDone decrements the worker count.
	WorkerDone()
}
