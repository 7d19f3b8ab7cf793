// Package host runs hosted units for the lifetime of a process.
//
// A Manager is created once at the composition root:
//
//	m := host.NewManager()
//	if err := m.Initialize(os.Args[1:]); err != nil {
//	    return err
//	}
//	_ = m.RegisterPeriodic("poller", newPoller)
//	return m.Run()
//
// Initialize loads configuration and builds the logger exactly once, even
// under concurrent calls. Run builds the host, starts every unit, blocks
// until SIGINT or SIGTERM (or Shutdown), stops units in reverse
// registration order and releases their resources. Run may be invoked at
// most once per Manager.
//
// Host build and run failures are logged at Critical and returned as a
// *HostError; Run never panics.
package host
