// Package workerservice hosts long-running periodic workers.
//
// Example usage:
//
//	m := workerservice.New()
//	if err := m.Initialize(os.Args[1:]); err != nil {
//	    log.Fatal(err)
//	}
//	err := m.RegisterPeriodic("poller", func(bc workerservice.BuildContext) (workerservice.Unit, error) {
//	    return newPoller(bc.Config, bc.Logger), nil
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := m.Run(); err != nil {
//	    os.Exit(1)
//	}
package workerservice

import (
	"github.com/bft-labs/workerservice/pkg/host"
	"github.com/bft-labs/workerservice/pkg/periodic"
)

// Manager owns process-wide initialization and the run-until-signal loop.
type Manager = host.Manager

// Option configures a Manager.
type Option = host.Option

// BuildContext is handed to every unit factory.
type BuildContext = host.BuildContext

// Unit is a periodic worker with start, tick and stop hooks.
type Unit = periodic.Unit

// Cadence can be embedded in a Unit to make its tick interval adjustable.
type Cadence = periodic.Cadence

// Funcs adapts plain functions to a Unit.
type Funcs = periodic.Funcs

// New returns a Manager. Call Initialize before registering units.
func New(opts ...Option) *Manager {
	return host.NewManager(opts...)
}
