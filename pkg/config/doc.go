// Package config loads layered configuration for a hosted worker process.
//
// Sources are applied lowest to highest precedence:
//
//  1. registered defaults
//  2. {dir}/hostsettings.{toml,json}
//  3. {dir}/appsettings.{toml,json}
//  4. {dir}/appsettings.{Environment}.{toml,json}
//  5. WORKER_* environment variables ("." in keys becomes "_")
//  6. startup argument overrides
//
// Missing files are skipped. A file that exists but cannot be parsed is an
// error. Keys are dotted paths and case-insensitive.
//
// A Snapshot is immutable once loaded. Use a Watcher to pick up file changes
// at runtime; readers that need fresh values hold a Source and call Current.
package config
