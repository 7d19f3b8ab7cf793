package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/workerservice/pkg/lifecycle"
	"github.com/bft-labs/workerservice/pkg/log"
	"github.com/bft-labs/workerservice/pkg/periodic"
)

// DefaultShutdownTimeout bounds how long Stop waits for all services.
const DefaultShutdownTimeout = 30 * time.Second

// UnitStatus is the state of one hosted service.
type UnitStatus struct {
	Name  string
	State lifecycle.State
}

type entry struct {
	name    string
	svc     Service
	builtin bool

	mu    sync.Mutex
	state lifecycle.State
}

func (e *entry) setState(s lifecycle.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = s
}

func (e *entry) currentState() lifecycle.State {
	if st, ok := e.svc.(Stater); ok {
		return st.State()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

type closer struct {
	name string
	fn   func() error
}

// Host is a built set of services. Services start concurrently and stop
// in reverse registration order.
type Host struct {
	logger          log.Logger
	shutdownTimeout time.Duration

	entries []*entry
	closers []closer

	disposeOnce sync.Once
}

func newHost(logger log.Logger, shutdownTimeout time.Duration) *Host {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &Host{logger: logger, shutdownTimeout: shutdownTimeout}
}

// add appends a service and collects its closers.
func (h *Host) add(name string, svc Service, builtin bool) {
	h.entries = append(h.entries, &entry{name: name, svc: svc, builtin: builtin, state: lifecycle.StateCreated})

	if c, ok := svc.(io.Closer); ok {
		h.addCloser(name, c.Close)
	}
	if rt, ok := svc.(*periodic.Runtime); ok {
		if c, ok := rt.Unit().(io.Closer); ok {
			h.addCloser(name, c.Close)
		}
	}
}

func (h *Host) addCloser(name string, fn func() error) {
	h.closers = append(h.closers, closer{name: name, fn: fn})
}

// Units returns the state of every registered unit, excluding built-in
// services, in registration order.
func (h *Host) Units() []UnitStatus {
	out := make([]UnitStatus, 0, len(h.entries))
	for _, e := range h.entries {
		if e.builtin {
			continue
		}
		out = append(out, UnitStatus{Name: e.name, State: e.currentState()})
	}
	return out
}

// Start starts every service concurrently and waits for all of them. The
// first failure is returned once every Start call has returned.
func (h *Host) Start(ctx context.Context) error {
	var g errgroup.Group
	for _, e := range h.entries {
		e := e
		g.Go(func() error {
			e.setState(lifecycle.StateStarting)
			if err := startSafe(ctx, e.svc); err != nil {
				e.setState(lifecycle.StateFaulted)
				return fmt.Errorf("start %s: %w", e.name, err)
			}
			e.setState(lifecycle.StateRunning)
			return nil
		})
	}
	return g.Wait()
}

// Stop stops every service in reverse registration order within the host's
// shutdown timeout. Failures are logged at Critical and joined.
func (h *Host) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(h.entries) - 1; i >= 0; i-- {
		e := h.entries[i]
		final := e.currentState().Terminal()
		if !final {
			e.setState(lifecycle.StateStopping)
		}
		if err := stopSafe(ctx, e.svc); err != nil {
			e.setState(lifecycle.StateFaulted)
			h.logger.Critical("service stop failed", log.String("service", e.name), log.Err(err))
			errs = append(errs, fmt.Errorf("stop %s: %w", e.name, err))
			continue
		}
		if !final {
			e.setState(lifecycle.StateStopped)
		}
		h.logger.Debug("service stopped", log.String("service", e.name))
	}
	return errors.Join(errs...)
}

// Dispose runs every closer in reverse order. Only the first call acts.
func (h *Host) Dispose() {
	h.disposeOnce.Do(func() {
		for i := len(h.closers) - 1; i >= 0; i-- {
			c := h.closers[i]
			if err := closeSafe(c.fn); err != nil {
				h.logger.Critical("dispose failed", log.String("service", c.name), log.Err(err))
			}
		}
	})
}

func startSafe(ctx context.Context, svc Service) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in Start: %v", r)
		}
	}()
	return svc.Start(ctx)
}

func stopSafe(ctx context.Context, svc Service) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in Stop: %v", r)
		}
	}()
	return svc.Stop(ctx)
}

func closeSafe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in Close: %v", r)
		}
	}()
	return fn()
}
