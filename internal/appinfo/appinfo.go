// Package appinfo resolves the application name, version and environment
// reported by the host.
package appinfo

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/bft-labs/workerservice/pkg/config"
)

// DevVersion is reported when no version is configured or embedded.
const DevVersion = "0.0.0-dev"

// fallbackName is used when neither configuration nor the binary names the app.
const fallbackName = "worker"

// Info identifies the running application.
type Info struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// String returns "{name} {version}".
func (i Info) String() string {
	return i.Name + " " + i.Version
}

var (
	readBuildInfo = debug.ReadBuildInfo
	executable    = os.Executable
)

// Resolve computes Info from snap and the running binary.
//
// The name comes from app.name, then the main package path, then the
// executable. The version comes from app.version, then the main module
// version, then DevVersion, and is always rendered as major.minor.patch.
func Resolve(snap *config.Snapshot) Info {
	return Info{
		Name:        resolveName(snap),
		Version:     resolveVersion(snap),
		Environment: snap.Environment(),
	}
}

// Lazy returns a function that resolves Info on first use and caches it.
func Lazy(snap *config.Snapshot) func() Info {
	return sync.OnceValue(func() Info { return Resolve(snap) })
}

func resolveName(snap *config.Snapshot) string {
	if name := snap.String("app.name", ""); name != "" {
		return name
	}
	if bi, ok := readBuildInfo(); ok && bi.Path != "" {
		if name := path.Base(bi.Path); name != "." && name != "/" {
			return name
		}
	}
	if exe, err := executable(); err == nil {
		name := filepath.Base(exe)
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return fallbackName
}

func resolveVersion(snap *config.Snapshot) string {
	if v := FormatVersion(snap.String("app.version", "")); v != "" {
		return v
	}
	if bi, ok := readBuildInfo(); ok {
		if v := FormatVersion(bi.Main.Version); v != "" {
			return v
		}
	}
	return DevVersion
}

// FormatVersion renders v as major.minor.patch, dropping a leading "v",
// pre-release and build metadata. Missing minor or patch parts are zero.
// It returns "" when v does not start with a number.
func FormatVersion(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}

	var parts [3]int
	fields := strings.Split(v, ".")
	for i := 0; i < len(parts) && i < len(fields); i++ {
		if _, err := fmt.Sscanf(fields[i], "%d", &parts[i]); err != nil || parts[i] < 0 {
			if i == 0 {
				return ""
			}
			parts[i] = 0
		}
	}
	return fmt.Sprintf("%d.%d.%d", parts[0], parts[1], parts[2])
}

// Compatible reports whether version >= minVersion, comparing
// major.minor.patch numerically.
func Compatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(FormatVersion(version), "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(FormatVersion(minVersion), "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
