package appinfo

import (
	"errors"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/workerservice/pkg/config"
)

func stubBuildInfo(t *testing.T, bi *debug.BuildInfo, ok bool) *atomic.Int32 {
	t.Helper()
	var calls atomic.Int32
	prev := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		calls.Add(1)
		return bi, ok
	}
	t.Cleanup(func() { readBuildInfo = prev })
	return &calls
}

func loadSnapshot(t *testing.T, overrides map[string]string) *config.Snapshot {
	t.Helper()
	snap, err := (&config.Loader{
		Dir:         filepath.Join(t.TempDir(), "none"),
		Environment: "Staging",
		Overrides:   overrides,
	}).Load()
	require.NoError(t, err)
	return snap
}

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.2.3", "1.2.3"},
		{"v1.2.3", "1.2.3"},
		{"v1.2.3-rc.1+build.7", "1.2.3"},
		{"2.1", "2.1.0"},
		{"3", "3.0.0"},
		{"1.2.3.4", "1.2.3"},
		{"(devel)", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatVersion(tt.in))
		})
	}
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible("1.2.0", "1.0.0"))
	assert.True(t, Compatible("1.0.0", "1.0.0"))
	assert.True(t, Compatible("2.0.0", "1.9.9"))
	assert.False(t, Compatible("1.0.0", "1.0.1"))
	assert.False(t, Compatible("1.9.0", "2.0.0"))
}

func TestResolve_FromConfig(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{Path: "example.com/cmd/ignored", Main: debug.Module{Version: "v9.9.9"}}, true)
	snap := loadSnapshot(t, map[string]string{"app.name": "billing", "app.version": "v4.2"})

	info := Resolve(snap)

	assert.Equal(t, Info{Name: "billing", Version: "4.2.0", Environment: "Staging"}, info)
	assert.Equal(t, "billing 4.2.0", info.String())
}

func TestResolve_FromBuildInfo(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{Path: "example.com/tools/cmd/reporter", Main: debug.Module{Version: "v1.5.2"}}, true)

	info := Resolve(loadSnapshot(t, nil))

	assert.Equal(t, "reporter", info.Name)
	assert.Equal(t, "1.5.2", info.Version)
}

func TestResolve_Fallbacks(t *testing.T) {
	stubBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true)
	prev := executable
	executable = func() (string, error) { return "/usr/local/bin/collector.exe", nil }
	t.Cleanup(func() { executable = prev })

	info := Resolve(loadSnapshot(t, nil))
	assert.Equal(t, "collector", info.Name)
	assert.Equal(t, DevVersion, info.Version)

	executable = func() (string, error) { return "", errors.New("unsupported") }
	stubBuildInfo(t, nil, false)
	assert.Equal(t, fallbackName, Resolve(nil).Name)
	assert.Equal(t, config.DefaultEnvironment, Resolve(nil).Environment)
}

func TestLazy_ResolvesOnce(t *testing.T) {
	calls := stubBuildInfo(t, &debug.BuildInfo{Path: "example.com/cmd/once", Main: debug.Module{Version: "v1.0.0"}}, true)
	get := Lazy(loadSnapshot(t, nil))

	assert.Equal(t, int32(0), calls.Load())
	first := get()
	second := get()

	assert.Equal(t, first, second)
	assert.Equal(t, int32(2), calls.Load(), "one lookup each for name and version")
}
