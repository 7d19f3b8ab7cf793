package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Defaults for the loader.
const (
	DefaultDir         = "/conf"
	DefaultEnvironment = "Production"
	DefaultEnvPrefix   = "WORKER"
)

// Reserved keys resolved before any file is read.
const (
	KeyConfigDir   = "config_dir"
	KeyEnvironment = "environment"
)

// Loader builds Snapshots from defaults, files, environment and overrides.
// A Loader may be reused; every Load reads the sources again.
type Loader struct {
	// Dir is the directory holding the settings files. Empty resolves to
	// WORKER_CONFIG_DIR, then DefaultDir. An override for config_dir wins.
	Dir string

	// Environment selects appsettings.{Environment}. Empty resolves to
	// WORKER_ENVIRONMENT, then DefaultEnvironment. An override wins.
	Environment string

	// EnvPrefix is the environment variable prefix without the trailing
	// underscore. Empty means DefaultEnvPrefix.
	EnvPrefix string

	// Defaults are the lowest precedence values, keyed by dotted path.
	Defaults map[string]any

	// Overrides are the highest precedence values, usually from ParseArgs.
	Overrides map[string]string
}

// FileNames returns the settings file names in precedence order, lowest first.
func (l *Loader) FileNames() []string {
	env := l.environment()
	var names []string
	for _, base := range []string{"hostsettings", "appsettings", "appsettings." + env} {
		names = append(names, base+".toml", base+".json")
	}
	return names
}

// ResolvedDir returns the directory Load reads from.
func (l *Loader) ResolvedDir() string {
	return l.resolve(KeyConfigDir, l.Dir, DefaultDir)
}

func (l *Loader) environment() string {
	return l.resolve(KeyEnvironment, l.Environment, DefaultEnvironment)
}

func (l *Loader) prefix() string {
	if l.EnvPrefix == "" {
		return DefaultEnvPrefix
	}
	return strings.TrimSuffix(l.EnvPrefix, "_")
}

// resolve applies override > explicit field > environment variable > fallback.
func (l *Loader) resolve(key, explicit, fallback string) string {
	if v, ok := l.Overrides[key]; ok && v != "" {
		return v
	}
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(l.prefix() + "_" + strings.ToUpper(key)); v != "" {
		return v
	}
	return fallback
}

// Load reads every source and returns a new Snapshot.
func (l *Loader) Load() (*Snapshot, error) {
	v := viper.New()
	v.SetEnvPrefix(l.prefix())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range l.Defaults {
		v.SetDefault(NormalizeKey(key), value)
	}

	dir := l.ResolvedDir()
	env := l.environment()

	var loaded []string
	for _, name := range l.FileNames() {
		path := filepath.Join(dir, name)
		ok, err := mergeFile(v, path)
		if err != nil {
			return nil, err
		}
		if ok {
			loaded = append(loaded, path)
		}
	}

	for key, value := range l.Overrides {
		v.Set(NormalizeKey(key), value)
	}
	v.Set(KeyConfigDir, dir)
	v.Set(KeyEnvironment, env)

	return &Snapshot{
		v:           v,
		dir:         dir,
		environment: env,
		files:       loaded,
		loadedAt:    time.Now(),
	}, nil
}

// mergeFile layers one settings file onto v. It reports false when the file
// does not exist.
func mergeFile(v *viper.Viper, path string) (bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read config %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case ".toml":
		m := make(map[string]any)
		if err := toml.Unmarshal(b, &m); err != nil {
			var derr *toml.DecodeError
			if errors.As(err, &derr) {
				row, col := derr.Position()
				return false, fmt.Errorf("parse config %s:%d:%d: %w", path, row, col, err)
			}
			return false, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := v.MergeConfigMap(m); err != nil {
			return false, fmt.Errorf("merge config %s: %w", path, err)
		}
	case ".json":
		v.SetConfigType("json")
		if err := v.MergeConfig(bytes.NewReader(b)); err != nil {
			return false, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return false, fmt.Errorf("config %s: unsupported format", path)
	}

	return true, nil
}
