// Package metrics records per-unit runtime statistics.
//
// The periodic runtime reports through the Recorder interface so that the
// core carries no hard dependency on a metrics backend. NewPrometheus
// provides the Prometheus implementation served by the status server.
package metrics

import (
	"time"

	"github.com/bft-labs/workerservice/pkg/lifecycle"
)

// Tick results reported to ObserveTick.
const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultCancelled = "cancelled"
)

// Recorder receives runtime observations.
type Recorder interface {
	// ObserveTick records one completed tick invocation.
	ObserveTick(unit, result string, duration time.Duration)

	// SetState records the current lifecycle state of a unit.
	SetState(unit string, state lifecycle.State)
}

// Noop discards every observation.
type Noop struct{}

// ObserveTick does nothing.
func (Noop) ObserveTick(string, string, time.Duration) {}

// SetState does nothing.
func (Noop) SetState(string, lifecycle.State) {}
