package periodic

import (
	"context"
	"sync"
	"time"
)

// DefaultTickInterval is the cadence used when none is configured.
const DefaultTickInterval = 50 * time.Millisecond

// Unit is the work a Runtime drives.
type Unit interface {
	// Start prepares the unit. It is called exactly once, before any Tick.
	Start(ctx context.Context) error

	// Tick performs one iteration of work. Long operations should observe ctx.
	Tick(ctx context.Context) error

	// Stop releases the unit's resources. It is called at most once, after
	// the last Tick has returned.
	Stop(ctx context.Context) error
}

// TickIntervaler is implemented by units that control their own cadence.
// The runtime calls TickInterval before every wait.
type TickIntervaler interface {
	TickInterval() time.Duration
}

// Cadence is a tick interval that is safe to read and update from any
// goroutine. Embed it in a unit to let the unit adjust its own cadence.
// The zero value reports DefaultTickInterval.
type Cadence struct {
	mu       sync.RWMutex
	interval time.Duration
}

// NewCadence returns a Cadence set to d.
func NewCadence(d time.Duration) *Cadence {
	return &Cadence{interval: d}
}

// TickInterval returns the current interval, or DefaultTickInterval when
// the interval is unset or not positive.
func (c *Cadence) TickInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.interval <= 0 {
		return DefaultTickInterval
	}
	return c.interval
}

// SetTickInterval changes the interval. It takes effect from the next wait.
func (c *Cadence) SetTickInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = d
}

// Funcs adapts plain functions to Unit. Nil hooks succeed immediately.
type Funcs struct {
	StartFunc func(ctx context.Context) error
	TickFunc  func(ctx context.Context) error
	StopFunc  func(ctx context.Context) error
}

// Start calls StartFunc.
func (f Funcs) Start(ctx context.Context) error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc(ctx)
}

// Tick calls TickFunc.
func (f Funcs) Tick(ctx context.Context) error {
	if f.TickFunc == nil {
		return nil
	}
	return f.TickFunc(ctx)
}

// Stop calls StopFunc.
func (f Funcs) Stop(ctx context.Context) error {
	if f.StopFunc == nil {
		return nil
	}
	return f.StopFunc(ctx)
}
