package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/workerservice/pkg/lifecycle"
	"github.com/bft-labs/workerservice/pkg/log"
)

type panickyService struct{}

func (panickyService) Start(context.Context) error { return nil }
func (panickyService) Stop(context.Context) error  { panic("boom") }

type blockingService struct{}

func (blockingService) Start(context.Context) error { return nil }
func (blockingService) Stop(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestHost_StopRecoversPanicAndContinues(t *testing.T) {
	rec := log.NewRecorder()
	j := &journal{}
	h := newHost(rec, time.Second)
	h.add("first", &fakeService{name: "first", j: j}, false)
	h.add("bad", panickyService{}, false)

	require.NoError(t, h.Start(context.Background()))
	err := h.Stop()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in Stop: boom")
	assert.Equal(t, []string{"start:first", "stop:first"}, j.list())
	assert.Equal(t, 1, rec.Count(log.LevelCritical))
	assert.Equal(t, []UnitStatus{
		{Name: "first", State: lifecycle.StateStopped},
		{Name: "bad", State: lifecycle.StateFaulted},
	}, h.Units())
}

func TestHost_StopIsBoundedByShutdownTimeout(t *testing.T) {
	h := newHost(log.NewRecorder(), 20*time.Millisecond)
	h.add("slow", blockingService{}, false)
	require.NoError(t, h.Start(context.Background()))

	start := time.Now()
	err := h.Stop()

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHost_StartFailureKeepsFaultedState(t *testing.T) {
	j := &journal{}
	h := newHost(log.NewRecorder(), time.Second)
	h.add("ok", &fakeService{name: "ok", j: j}, false)
	h.add("broken", &fakeService{name: "broken", j: j, startErr: errors.New("nope")}, false)

	err := h.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start broken: nope")

	want := []UnitStatus{
		{Name: "ok", State: lifecycle.StateStopped},
		{Name: "broken", State: lifecycle.StateFaulted},
	}
	require.NoError(t, h.Stop())
	assert.Equal(t, want, h.Units())

	// Terminal states survive a second Stop.
	require.NoError(t, h.Stop())
	assert.Equal(t, want, h.Units())
}

func TestHost_DisposeRunsOnceInReverse(t *testing.T) {
	rec := log.NewRecorder()
	j := &journal{}
	h := newHost(rec, time.Second)
	h.add("a", &fakeService{name: "a", j: j}, false)
	h.addCloser("lock", func() error {
		j.add("close:lock")
		return errors.New("already released")
	})
	h.add("b", &fakeService{name: "b", j: j}, true)

	h.Dispose()
	h.Dispose()

	assert.Equal(t, []string{"close:b", "close:lock", "close:a"}, j.list())
	assert.Equal(t, 1, rec.Count(log.LevelCritical))
	assert.Equal(t, []UnitStatus{{Name: "a", State: lifecycle.StateCreated}}, h.Units())
}
