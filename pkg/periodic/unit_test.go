package periodic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCadence_Defaults(t *testing.T) {
	var c Cadence
	assert.Equal(t, DefaultTickInterval, c.TickInterval())

	c.SetTickInterval(-time.Second)
	assert.Equal(t, DefaultTickInterval, c.TickInterval())

	c.SetTickInterval(time.Second)
	assert.Equal(t, time.Second, c.TickInterval())

	assert.Equal(t, 20*time.Millisecond, NewCadence(20*time.Millisecond).TickInterval())
}

func TestCadence_ConcurrentAccess(t *testing.T) {
	c := NewCadence(time.Millisecond)
	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(2)
		go func(d time.Duration) {
			defer wg.Done()
			c.SetTickInterval(d)
		}(time.Duration(i) * time.Millisecond)
		go func() {
			defer wg.Done()
			assert.Positive(t, c.TickInterval())
		}()
	}
	wg.Wait()
}

func TestFuncs_NilHooksSucceed(t *testing.T) {
	var f Funcs
	ctx := context.Background()
	assert.NoError(t, f.Start(ctx))
	assert.NoError(t, f.Tick(ctx))
	assert.NoError(t, f.Stop(ctx))
}

func TestPhaseError_Matching(t *testing.T) {
	cause := errors.New("disk full")
	tests := []struct {
		phase    Phase
		sentinel error
	}{
		{PhaseStart, ErrStartupFailure},
		{PhaseTick, ErrTickFailure},
		{PhaseStop, ErrShutdownFailure},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &PhaseError{Unit: "u", Phase: tt.phase, Err: cause})
			assert.ErrorIs(t, err, tt.sentinel)
			assert.ErrorIs(t, err, cause)
			assert.Contains(t, err.Error(), `unit "u" `+string(tt.phase)+" failed: disk full")
		})
	}
}

func TestIsCancellation(t *testing.T) {
	live := context.Background()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want bool
	}{
		{"nil error", cancelled, nil, false},
		{"canceled with live context", live, context.Canceled, false},
		{"canceled with cancelled context", cancelled, context.Canceled, true},
		{"wrapped canceled", cancelled, fmt.Errorf("query: %w", context.Canceled), true},
		{"deadline exceeded", expired, context.DeadlineExceeded, true},
		{"other error with cancelled context", cancelled, errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCancellation(tt.ctx, tt.err))
		})
	}
}
