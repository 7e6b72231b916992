// Package config defines the storage engine's construction-time options
// (spec.md §6 "Configuration") and an optional on-disk override file,
// grounded on the teacher's internal/config local-override layer.
package config

import "runtime"

// StartupOptions controls one-time behavior applied when the engine opens
// its database file.
type StartupOptions struct {
	// ClearDatabase deletes any existing database file before opening.
	ClearDatabase bool
	// OverrideLockedDatabase proceeds even if another process appears to
	// hold the database file's lock.
	OverrideLockedDatabase bool
}

// Options is the full set of recognized construction options for the
// storage engine (spec.md §6).
type Options struct {
	// DatabasePath is the directory the database file is created under.
	DatabasePath string
	// ResourceDataDirectoryPath must be set (Validate rejects an empty
	// value), but the engine writes no files there: every resource body,
	// including alternate and recognition data, is stored in the database.
	ResourceDataDirectoryPath string
	// DatabaseFilenameSuffix names the SQLite file within DatabasePath.
	DatabaseFilenameSuffix string
	// StartupOptions controls one-time open-time behavior.
	StartupOptions StartupOptions
	// ReaderThreadPoolSize bounds the concurrent read-task pool; 0 selects
	// the platform default (GOMAXPROCS).
	ReaderThreadPoolSize int
	// InlineResourceThreshold is defaulted and read from the override file,
	// but the storage layer does not consult it: resource bodies of every
	// size are stored inline in the database.
	InlineResourceThreshold int64
	// EnableStdoutMetrics installs a periodic stdout OTel metric exporter as
	// the global MeterProvider when set, so the dispatcher/notifier
	// instruments registered at package init time actually export. Leave
	// unset when an embedder configures its own MeterProvider beforehand.
	EnableStdoutMetrics bool
	// EnableStdoutTraces installs a stdout OTel span exporter as the global
	// TracerProvider when set, so the write-task spans internal/dispatch
	// records actually export. Leave unset when an embedder configures its
	// own TracerProvider beforehand.
	EnableStdoutTraces bool
}

// DefaultDatabaseFilenameSuffix matches the original client's database
// filename, kept for familiarity with existing deployments.
const DefaultDatabaseFilenameSuffix = "QuentierLocalStorage.sqlite"

// DefaultInlineResourceThreshold is the default inline/file-body cutoff.
const DefaultInlineResourceThreshold = 1 << 20 // 1 MiB

// WithDefaults returns a copy of o with zero-valued fields replaced by
// their documented defaults.
func (o Options) WithDefaults() Options {
	if o.DatabaseFilenameSuffix == "" {
		o.DatabaseFilenameSuffix = DefaultDatabaseFilenameSuffix
	}
	if o.ReaderThreadPoolSize <= 0 {
		o.ReaderThreadPoolSize = runtime.GOMAXPROCS(0)
	}
	if o.InlineResourceThreshold <= 0 {
		o.InlineResourceThreshold = DefaultInlineResourceThreshold
	}
	return o
}

// Validate checks that the options bundle names usable paths.
func (o Options) Validate() error {
	if o.DatabasePath == "" {
		return errMissingDatabasePath
	}
	if o.ResourceDataDirectoryPath == "" {
		return errMissingResourceDir
	}
	return nil
}
