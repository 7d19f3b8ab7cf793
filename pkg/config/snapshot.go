package config

import (
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Snapshot is an immutable view of the configuration at load time.
// A nil *Snapshot is valid and returns defaults for every lookup.
type Snapshot struct {
	v           *viper.Viper
	dir         string
	environment string
	files       []string
	loadedAt    time.Time
}

// Source provides the most recent Snapshot.
type Source interface {
	Current() *Snapshot
}

type staticSource struct{ snap *Snapshot }

func (s staticSource) Current() *Snapshot { return s.snap }

// Static returns a Source that always yields snap.
func Static(snap *Snapshot) Source {
	return staticSource{snap: snap}
}

// Dir returns the directory the snapshot was loaded from.
func (s *Snapshot) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Environment returns the environment name, e.g. "Production".
func (s *Snapshot) Environment() string {
	if s == nil {
		return DefaultEnvironment
	}
	return s.environment
}

// Files returns the settings files that were found, lowest precedence first.
func (s *Snapshot) Files() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.files...)
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}

// IsSet reports whether key has a value from any source, defaults included.
func (s *Snapshot) IsSet(key string) bool {
	if s == nil {
		return false
	}
	return s.v.IsSet(NormalizeKey(key))
}

// Keys returns every key known from defaults, files and overrides.
// Keys only present in the environment are not listed.
func (s *Snapshot) Keys() []string {
	if s == nil {
		return nil
	}
	return s.v.AllKeys()
}

// String returns the string at key, or def.
func (s *Snapshot) String(key, def string) string { return Get(s, key, def) }

// Int returns the int at key, or def.
func (s *Snapshot) Int(key string, def int) int { return Get(s, key, def) }

// Bool returns the bool at key, or def.
func (s *Snapshot) Bool(key string, def bool) bool { return Get(s, key, def) }

// Duration returns the duration at key, or def. Strings use
// time.ParseDuration syntax; bare numbers are nanoseconds.
func (s *Snapshot) Duration(key string, def time.Duration) time.Duration {
	return Get(s, key, def)
}

// Get returns the value at key converted to T, or def when the key is unset
// or cannot be converted.
func Get[T any](s *Snapshot, key string, def T) T {
	if s == nil {
		return def
	}
	raw := s.v.Get(NormalizeKey(key))
	if raw == nil {
		return def
	}

	var (
		out any
		err error
	)
	switch any(def).(type) {
	case string:
		out, err = cast.ToStringE(raw)
	case int:
		out, err = cast.ToIntE(raw)
	case int64:
		out, err = cast.ToInt64E(raw)
	case uint64:
		out, err = cast.ToUint64E(raw)
	case float64:
		out, err = cast.ToFloat64E(raw)
	case bool:
		out, err = cast.ToBoolE(raw)
	case time.Duration:
		out, err = cast.ToDurationE(raw)
	case []string:
		out, err = cast.ToStringSliceE(raw)
	case map[string]any:
		out, err = cast.ToStringMapE(raw)
	default:
		v, ok := raw.(T)
		if !ok {
			return def
		}
		return v
	}
	if err != nil {
		return def
	}
	return out.(T)
}
