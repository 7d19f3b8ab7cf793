// Package periodic runs a unit of work repeatedly at a bounded cadence.
//
// A Runtime drives one Unit through three phases. Start is invoked once;
// a non-cancellation failure there is fatal to the runtime and is returned
// to the caller. Tick is then invoked repeatedly until the context given to
// Start is cancelled; tick failures are logged at Critical and the loop
// carries on. Stop is invoked once after the loop has exited; its failures
// are logged and swallowed so shutdown always completes.
//
// The inter-tick wait uses a time.Ticker, so tick boundaries stay on a
// fixed wall-clock grid regardless of how long each tick takes. The
// cadence is read fresh before every wait and may be changed at any time:
//
//	type poller struct {
//	    periodic.Cadence
//	}
//
//	func (p *poller) Tick(ctx context.Context) error {
//	    if idle {
//	        p.SetTickInterval(5 * time.Second)
//	    }
//	    return nil
//	}
//
// Cancellation is never reported as a failure. An error is treated as
// cancellation when the phase's context is done and the error wraps
// context.Canceled or context.DeadlineExceeded.
package periodic
