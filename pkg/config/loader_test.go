package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoader_MissingDirectoryUsesDefaults(t *testing.T) {
	l := &Loader{
		Dir:      filepath.Join(t.TempDir(), "missing"),
		Defaults: map[string]any{"host.shutdown_timeout": "30s"},
	}

	snap, err := l.Load()

	require.NoError(t, err)
	assert.Empty(t, snap.Files())
	assert.Equal(t, 30*time.Second, snap.Duration("host.shutdown_timeout", 0))
	assert.Equal(t, DefaultEnvironment, snap.Environment())
}

func TestLoader_Precedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hostsettings.toml", `
[sample]
b = "host"
c = "host"
d = "host"
e = "host"
f = "host"
`)
	writeFile(t, dir, "appsettings.json", `{"sample": {"c": "app", "d": "app", "e": "app", "f": "app"}}`)
	writeFile(t, dir, "appsettings.Staging.toml", `
[sample]
d = "staging"
e = "staging"
f = "staging"
`)
	// Different environment, must be ignored.
	writeFile(t, dir, "appsettings.Production.toml", `
[sample]
d = "production"
`)
	t.Setenv("WORKER_SAMPLE_E", "env")

	l := &Loader{
		Dir:         dir,
		Environment: "Staging",
		Defaults: map[string]any{
			"sample.a": "default",
			"sample.b": "default",
		},
		Overrides: map[string]string{"sample.f": "override"},
	}

	snap, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "default", snap.String("sample.a", ""))
	assert.Equal(t, "host", snap.String("sample.b", ""))
	assert.Equal(t, "app", snap.String("sample.c", ""))
	assert.Equal(t, "staging", snap.String("sample.d", ""))
	assert.Equal(t, "env", snap.String("sample.e", ""))
	assert.Equal(t, "override", snap.String("sample.f", ""))
	assert.Equal(t, "fallback", snap.String("sample.missing", "fallback"))

	assert.Equal(t, []string{
		filepath.Join(dir, "hostsettings.toml"),
		filepath.Join(dir, "appsettings.json"),
		filepath.Join(dir, "appsettings.Staging.toml"),
	}, snap.Files())
	assert.Equal(t, dir, snap.Dir())
}

func TestLoader_ReservedKeys(t *testing.T) {
	envDir := t.TempDir()
	argDir := t.TempDir()
	writeFile(t, argDir, "appsettings.toml", `name = "from-arg-dir"`)

	t.Setenv("WORKER_CONFIG_DIR", envDir)
	t.Setenv("WORKER_ENVIRONMENT", "Development")

	l := &Loader{}
	assert.Equal(t, envDir, l.ResolvedDir())

	snap, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "Development", snap.Environment())
	assert.Equal(t, "Development", snap.String("environment", ""))

	l.Overrides = map[string]string{KeyConfigDir: argDir, KeyEnvironment: "Test"}
	snap, err = l.Load()
	require.NoError(t, err)
	assert.Equal(t, argDir, snap.Dir())
	assert.Equal(t, "Test", snap.Environment())
	assert.Equal(t, "from-arg-dir", snap.String("name", ""))
	assert.Contains(t, l.FileNames(), "appsettings.Test.json")
}

func TestLoader_MalformedFiles(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"toml", "appsettings.toml", "[broken\nkey = "},
		{"json", "hostsettings.json", `{"a": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, tt.file, tt.content)

			_, err := (&Loader{Dir: dir}).Load()

			require.Error(t, err)
			assert.Contains(t, err.Error(), filepath.Join(dir, tt.file))
		})
	}
}

func TestGet_Conversions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "appsettings.toml", `
[values]
count = 42
count_text = "7"
ratio = 0.5
enabled = "true"
timeout = "2s"
bad_int = "many"
tags = ["a", "b"]
`)

	snap, err := (&Loader{Dir: dir}).Load()
	require.NoError(t, err)

	assert.Equal(t, 42, Get(snap, "values.count", 0))
	assert.Equal(t, int64(42), Get(snap, "values.count", int64(0)))
	assert.Equal(t, 7, snap.Int("values.count_text", 0))
	assert.Equal(t, 0.5, Get(snap, "values.ratio", 0.0))
	assert.True(t, snap.Bool("values.enabled", false))
	assert.Equal(t, 2*time.Second, snap.Duration("values.timeout", 0))
	assert.Equal(t, 9, snap.Int("values.bad_int", 9))
	assert.Equal(t, []string{"a", "b"}, Get(snap, "values.tags", []string(nil)))
	assert.Equal(t, 42, Get(snap, "VALUES.Count", 0), "keys are case-insensitive")
	assert.True(t, snap.IsSet("values.count"))
	assert.False(t, snap.IsSet("values.nope"))
	assert.Contains(t, snap.Keys(), "values.count")
}

func TestGet_NilSnapshot(t *testing.T) {
	var snap *Snapshot

	assert.Equal(t, "x", snap.String("a", "x"))
	assert.Equal(t, 3, Get(snap, "a", 3))
	assert.False(t, snap.IsSet("a"))
	assert.Equal(t, DefaultEnvironment, snap.Environment())
	assert.Nil(t, Static(nil).Current())
}
