// Package lifecycle provides the state machine shared by every hosted unit.
//
// A Machine tracks one unit through Created, Starting, Running, Stopping
// and Stopped, with Faulted reachable from any of the active states.
// Stopped and Faulted are terminal: a unit is never restarted in place.
//
// # Usage
//
//	m := lifecycle.NewMachine("heartbeat", logger, emitter)
//
//	if err := m.TransitionTo(lifecycle.StateStarting, "start requested"); err != nil {
//	    return err
//	}
//
//	m.AddWorker()
//	go func() {
//	    defer m.WorkerDone()
//	    // ... tick loop ...
//	}()
//
//	// Graceful shutdown
//	if err := m.Wait(ctx); err != nil {
//	    return err
//	}
//
// # State Machine
//
// Valid state transitions:
//   - Created -> Starting
//   - Starting -> Running, Stopped, Faulted
//   - Running -> Stopping, Faulted
//   - Stopping -> Stopped, Faulted
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
//
// See version.go for version constants that can be used programmatically.
package lifecycle
