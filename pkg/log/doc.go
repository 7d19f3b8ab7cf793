// Package log provides the structured logging abstraction used by the
// periodic runtime and the lifecycle manager.
//
// The Logger interface adds a Critical level on top of the usual four.
// Critical is reserved for failures the runtime swallows or reports at a
// boundary: a failed tick, a failed stop hook, a host that could not be
// built. It never terminates the process.
//
// # Usage
//
// Build a zerolog-backed logger from options:
//
//	logger, err := log.New(log.Options{Level: "info", Format: "auto"})
//
// Or use the no-op logger for testing:
//
//	logger := log.NewNoopLogger()
//
// Tests that need to assert on log output can use a Recorder:
//
//	rec := log.NewRecorder()
//	// ...
//	rec.Count(log.LevelCritical)
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package log
