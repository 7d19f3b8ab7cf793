package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/workerservice/pkg/config"
	"github.com/bft-labs/workerservice/pkg/host"
	"github.com/bft-labs/workerservice/pkg/log"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"build failure", &host.HostError{Phase: host.PhaseBuild, Err: errors.New("x")}, exitFailure},
		{"run failure", fmt.Errorf("wrapped: %w", &host.HostError{Phase: host.PhaseRun, Err: errors.New("x")}), exitFailure},
		{"not initialized", host.ErrNotInitialized, exitUsage},
		{"already run", host.ErrAlreadyRun, exitUsage},
		{"bad argument", errors.New("argument \"x\": expected key=value"), exitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestOverrideArgs(t *testing.T) {
	cmd := newRootCmd(host.NewManager())
	require.NoError(t, cmd.ParseFlags([]string{
		"--config-dir", "/etc/worker",
		"--heartbeat-interval=250ms",
		"--watch-config",
	}))

	got := overrideArgs(cmd.Flags(), []string{"status.listen=:9090"})

	assert.Equal(t, []string{
		"config_dir=/etc/worker",
		"heartbeat.interval=250ms",
		"host.watch_config=true",
		"status.listen=:9090",
	}, got)
}

func TestExecute_UsageErrors(t *testing.T) {
	assert.Equal(t, exitUsage, execute([]string{"--no-such-flag"}))
	assert.Equal(t, exitUsage, execute([]string{"--config-dir", t.TempDir(), "positional"}))
}

func TestExecute_BuildFailureExitsOne(t *testing.T) {
	dir := t.TempDir()
	lock := filepath.Join(dir, "held.lock")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "appsettings.toml"), []byte(`
[log]
level = "critical"
format = "json"
`), 0o644))

	m := host.NewManager(host.WithLogOutput(&strings.Builder{}))
	cmd := newRootCmd(m)
	cmd.SetArgs([]string{"--config-dir", dir, "--lock-file", lock})

	// Hold the lock so the host cannot be built.
	holder := host.NewManager(host.WithConfigDir(dir), host.WithLogger(log.NewRecorder()))
	require.NoError(t, holder.Initialize([]string{"host.lock_file=" + lock}))
	holderDone := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { holderDone <- holder.RunContext(ctx) }()
	require.Eventually(t, func() bool { return holder.Units() != nil }, 2*time.Second, time.Millisecond)

	err := cmd.Execute()
	assert.ErrorIs(t, err, host.ErrHostBuild)
	assert.Equal(t, exitFailure, exitCode(err))

	cancel()
	require.NoError(t, <-holderDone)
}

type staticSource struct{ snap atomic.Pointer[config.Snapshot] }

func (s *staticSource) Current() *config.Snapshot { return s.snap.Load() }

func loadSnapshot(t *testing.T, overrides map[string]string) *config.Snapshot {
	t.Helper()
	snap, err := (&config.Loader{Dir: t.TempDir(), Overrides: overrides}).Load()
	require.NoError(t, err)
	return snap
}

func TestHeartbeat(t *testing.T) {
	file := filepath.Join(t.TempDir(), "state", "heartbeat")
	src := &staticSource{}
	src.snap.Store(loadSnapshot(t, map[string]string{
		keyHeartbeatInterval: "20ms",
		keyHeartbeatFile:     file,
	}))

	unit, err := newHeartbeat(host.BuildContext{Name: "heartbeat", Config: src, Logger: log.NewRecorder()})
	require.NoError(t, err)
	hb := unit.(*heartbeat)
	hb.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	assert.Equal(t, 20*time.Millisecond, hb.TickInterval())

	ctx := context.Background()
	require.NoError(t, hb.Start(ctx))
	require.NoError(t, hb.Tick(ctx))
	require.NoError(t, hb.Tick(ctx))

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02T03:04:05Z 2\n", string(b))

	src.snap.Store(loadSnapshot(t, map[string]string{keyHeartbeatInterval: "5ms", keyHeartbeatFile: file}))
	require.NoError(t, hb.Tick(ctx))
	assert.Equal(t, 5*time.Millisecond, hb.TickInterval())

	src.snap.Store(loadSnapshot(t, map[string]string{keyHeartbeatInterval: "0s"}))
	require.NoError(t, hb.Tick(ctx))
	assert.Equal(t, defaultHeartbeatInterval, hb.TickInterval())

	require.NoError(t, hb.Stop(ctx))
	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err))
}

func TestHeartbeat_WithoutFile(t *testing.T) {
	src := &staticSource{}
	src.snap.Store(loadSnapshot(t, nil))

	unit, err := newHeartbeat(host.BuildContext{Config: src, Logger: log.NewNoopLogger()})
	require.NoError(t, err)

	ctx := context.Background()
	assert.Equal(t, defaultHeartbeatInterval, unit.(*heartbeat).TickInterval())
	assert.NoError(t, unit.Start(ctx))
	assert.NoError(t, unit.Tick(ctx))
	assert.NoError(t, unit.Stop(ctx))
}
