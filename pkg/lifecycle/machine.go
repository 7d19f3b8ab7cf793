package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bft-labs/workerservice/pkg/log"
)

// ErrInvalidTransition is returned when a transition is not allowed from
// the current state.
var ErrInvalidTransition = errors.New("lifecycle: invalid state transition")

// transitions lists the allowed targets for each state.
var transitions = map[State][]State{
	StateCreated:  {StateStarting},
	StateStarting: {StateRunning, StateStopped, StateFaulted},
	StateRunning:  {StateStopping, StateFaulted},
	StateStopping: {StateStopped, StateFaulted},
}

// CanTransition reports whether from -> to is a valid transition.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Machine implements Tracker for a single named unit.
type Machine struct {
	mu           sync.RWMutex
	name         string
	state        State
	wg           sync.WaitGroup
	logger       log.Logger
	eventEmitter EventEmitter
}

var _ Tracker = (*Machine)(nil)

// NewMachine creates a machine in StateCreated.
// logger and emitter may be nil.
func NewMachine(name string, logger log.Logger, emitter EventEmitter) *Machine {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Machine{
		name:         name,
		state:        StateCreated,
		logger:       logger,
		eventEmitter: emitter,
	}
}

// Name returns the unit name the machine tracks.
func (m *Machine) Name() string {
	return m.name
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// TransitionTo attempts to transition to a new state.
// Returns an error wrapping ErrInvalidTransition if the transition is not valid.
func (m *Machine) TransitionTo(newState State, reason string) error {
	m.mu.Lock()
	oldState := m.state
	if !CanTransition(oldState, newState) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, oldState, newState)
	}
	m.state = newState
	m.mu.Unlock()

	// Emit event outside of lock
	if m.eventEmitter != nil {
		m.eventEmitter.OnStateChange(m.name, oldState, newState, reason)
	}

	m.logger.Debug("state transition",
		log.String("unit", m.name),
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)

	return nil
}

// AddWorker increments the worker count.
func (m *Machine) AddWorker() {
	m.wg.Add(1)
}

// WorkerDone decrements the worker count.
func (m *Machine) WorkerDone() {
	m.wg.Done()
}

// Wait waits for all workers to finish or for ctx to end.
// Returns ctx.Err() if the context ends first.
func (m *Machine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		m.logger.Warn("timed out waiting for workers",
			log.String("unit", m.name),
			log.Err(ctx.Err()),
		)
		return ctx.Err()
	}
}
