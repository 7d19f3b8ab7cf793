package periodic

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/workerservice/pkg/lifecycle"
	"github.com/bft-labs/workerservice/pkg/log"
	"github.com/bft-labs/workerservice/pkg/metrics"
)

// Runtime drives a single Unit through start, tick and stop.
// Use New to create one; a Runtime is single-use.
type Runtime struct {
	name     string
	unit     Unit
	logger   log.Logger
	recorder metrics.Recorder
	cadence  *Cadence
	machine  lifecycle.Tracker

	mu         sync.Mutex
	started    bool
	stopCalled bool
	cancel     context.CancelFunc

	startDone chan struct{}
	done      chan struct{}
	doneOnce  sync.Once
	ticks     atomic.Int64
}

// New creates a runtime for unit in StateCreated.
func New(name string, unit Unit, opts ...Option) *Runtime {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runtime{
		name:      name,
		unit:      unit,
		logger:    o.logger.With(log.String("unit", name)),
		recorder:  o.recorder,
		cadence:   NewCadence(o.interval),
		startDone: make(chan struct{}),
		done:      make(chan struct{}),
	}

	userEmitter := o.emitter
	r.machine = lifecycle.NewMachine(name, o.logger, lifecycle.EventEmitterFunc(
		func(unit string, previous, current lifecycle.State, reason string) {
			r.recorder.SetState(unit, current)
			if userEmitter != nil {
				userEmitter.OnStateChange(unit, previous, current, reason)
			}
		}))
	r.recorder.SetState(name, lifecycle.StateCreated)

	return r
}

// Name returns the unit name.
func (r *Runtime) Name() string {
	return r.name
}

// Unit returns the unit the runtime drives.
func (r *Runtime) Unit() Unit {
	return r.unit
}

// State returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (r *Runtime) State() lifecycle.State {
	return r.machine.State()
}

// Ticks returns how many Tick invocations have completed.
func (r *Runtime) Ticks() int64 {
	return r.ticks.Load()
}

// Done is closed once the tick loop has exited, or once Start has returned
// without launching the loop.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}

// TickInterval returns the cadence used before the next wait.
func (r *Runtime) TickInterval() time.Duration {
	if ti, ok := r.unit.(TickIntervaler); ok {
		if d := ti.TickInterval(); d > 0 {
			return d
		}
		return DefaultTickInterval
	}
	return r.cadence.TickInterval()
}

// SetTickInterval changes the runtime's own cadence. Units implementing
// TickIntervaler keep control of their cadence.
func (r *Runtime) SetTickInterval(d time.Duration) {
	r.cadence.SetTickInterval(d)
}

// Start invokes the unit's Start hook and, on success, launches the tick
// loop in a new goroutine. The loop runs until ctx is cancelled or Stop is
// called.
//
// A Start hook failure leaves the runtime Faulted and is returned as a
// *PhaseError matching ErrStartupFailure. If the hook fails because ctx was
// already cancelled, the cancellation error is returned unchanged.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()
	defer close(r.startDone)

	if err := r.machine.TransitionTo(lifecycle.StateStarting, "start requested"); err != nil {
		return err
	}

	if err := invoke(ctx, PhaseStart, r.unit.Start); err != nil {
		defer r.closeDone()

		if IsCancellation(ctx, err) {
			_ = r.machine.TransitionTo(lifecycle.StateStopped, "cancelled during start")
			return err
		}

		perr := &PhaseError{Unit: r.name, Phase: PhaseStart, Err: err}
		r.logger.Critical("unexpected error during unit start", log.Err(perr))
		_ = r.machine.TransitionTo(lifecycle.StateFaulted, err.Error())
		return perr
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	if err := r.machine.TransitionTo(lifecycle.StateRunning, "start hook completed"); err != nil {
		cancel()
		r.closeDone()
		return err
	}

	r.machine.AddWorker()
	go r.loop(loopCtx)

	r.logger.Debug("unit started", log.Duration("interval", r.TickInterval()))
	return nil
}

// Stop ends the tick loop, waits for it to exit and invokes the unit's Stop
// hook. Only the first call has any effect; Stop before Start is a no-op.
//
// Stop hook failures are logged at Critical and swallowed. A cancellation
// error is returned when ctx ends before the loop exits, or when the Stop
// hook itself is cancelled by ctx.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started || r.stopCalled {
		r.mu.Unlock()
		return nil
	}
	r.stopCalled = true
	r.mu.Unlock()

	select {
	case <-r.startDone:
	case <-ctx.Done():
		r.logger.Critical("shutdown deadline reached before unit start completed", log.Err(ctx.Err()))
		return ctx.Err()
	}

	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if err := r.machine.Wait(ctx); err != nil {
		// The last tick has not returned, so the Stop hook must not run.
		r.logger.Critical("shutdown deadline reached before tick loop exited", log.Err(err))
		_ = r.machine.TransitionTo(lifecycle.StateFaulted, "tick loop did not exit")
		return err
	}

	if r.machine.State() == lifecycle.StateRunning {
		_ = r.machine.TransitionTo(lifecycle.StateStopping, "stop requested")
	}

	err := invoke(ctx, PhaseStop, r.unit.Stop)
	defer func() {
		if r.machine.State() == lifecycle.StateStopping {
			_ = r.machine.TransitionTo(lifecycle.StateStopped, "stop hook completed")
		}
	}()

	switch {
	case err == nil:
		r.logger.Debug("unit stopped", log.Int64("ticks", r.Ticks()))
		return nil
	case IsCancellation(ctx, err):
		return err
	default:
		r.logger.Critical("unexpected error during unit stop",
			log.Err(&PhaseError{Unit: r.name, Phase: PhaseStop, Err: err}))
		return nil
	}
}

// loop invokes Tick until ctx is cancelled.
func (r *Runtime) loop(ctx context.Context) {
	defer r.machine.WorkerDone()
	defer r.closeDone()

	interval := r.TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		r.tick(ctx)

		if next := r.TickInterval(); next != interval {
			interval = next
			ticker.Reset(interval)
		}

		// A boundary that passed while the tick ran is stale; waiting for
		// the next one keeps consecutive ticks at least interval apart.
		select {
		case <-ticker.C:
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs one iteration. Failures are contained here.
func (r *Runtime) tick(ctx context.Context) {
	start := time.Now()
	err := invoke(ctx, PhaseTick, r.unit.Tick)
	elapsed := time.Since(start)
	r.ticks.Add(1)

	switch {
	case err == nil:
		r.recorder.ObserveTick(r.name, metrics.ResultSuccess, elapsed)
	case IsCancellation(ctx, err):
		r.recorder.ObserveTick(r.name, metrics.ResultCancelled, elapsed)
	default:
		r.recorder.ObserveTick(r.name, metrics.ResultFailure, elapsed)
		r.logger.Critical("unexpected error during unit tick",
			log.Err(&PhaseError{Unit: r.name, Phase: PhaseTick, Err: err}),
			log.Duration("elapsed", elapsed),
		)
	}
}

func (r *Runtime) closeDone() {
	r.doneOnce.Do(func() { close(r.done) })
}

// invoke calls a hook, converting a panic into an error.
func invoke(ctx context.Context, phase Phase, hook func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in %s hook: %v", phase, p)
		}
	}()
	return hook(ctx)
}
