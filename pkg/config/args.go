package config

import (
	"fmt"
	"strings"
)

// ParseArgs converts startup arguments into configuration overrides.
//
// Accepted forms are "--key=value", "--key value", "/key value" and
// "key=value". Keys are normalized with NormalizeKey. Later arguments win.
func ParseArgs(args []string) (map[string]string, error) {
	overrides := make(map[string]string, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		var prefixed bool
		switch {
		case strings.HasPrefix(arg, "--"):
			arg, prefixed = arg[2:], true
		case strings.HasPrefix(arg, "/") && len(arg) > 1:
			arg, prefixed = arg[1:], true
		}

		key, value, hasValue := strings.Cut(arg, "=")
		if !hasValue {
			if !prefixed {
				return nil, fmt.Errorf("argument %q: expected key=value", args[i])
			}
			if i+1 >= len(args) {
				return nil, fmt.Errorf("argument %q: missing value", args[i])
			}
			i++
			value = args[i]
		}

		key = NormalizeKey(key)
		if key == "" {
			return nil, fmt.Errorf("argument %q: empty key", args[i])
		}
		overrides[key] = value
	}

	return overrides, nil
}

// NormalizeKey lowercases key and maps the ":" and "__" section separators
// to "." and "-" to "_".
func NormalizeKey(key string) string {
	key = strings.TrimSpace(strings.ToLower(key))
	key = strings.ReplaceAll(key, "__", ".")
	key = strings.ReplaceAll(key, ":", ".")
	key = strings.ReplaceAll(key, "-", "_")
	return strings.Trim(key, ".")
}
