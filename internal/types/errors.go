package types

import (
	"errors"
	"fmt"
)

// Error taxonomy for the storage engine, per spec.md §7. Every public
// future resolves either with a success value or with one of these, never
// both.
var (
	// ErrInvalidArgument covers construction with options that fail
	// validation, a malformed entity, or an invalid search query.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks a find operation whose filters legitimately matched
	// no row.
	ErrNotFound = errors.New("not found")

	// ErrDatabaseRequest wraps any failure returned by the underlying SQL
	// engine (prepare, bind, exec, commit, rollback).
	ErrDatabaseRequest = errors.New("database request failed")

	// ErrHandlerDestroyed is returned when the owning store was closed
	// before a queued closure could run.
	ErrHandlerDestroyed = errors.New("handler destroyed")

	// ErrSchemaVersion marks an on-disk schema the code cannot read or
	// that requires an upgrade this engine does not perform.
	ErrSchemaVersion = errors.New("schema version mismatch")

	// ErrCycle marks a tag-parent put that would introduce a cycle.
	ErrCycle = errors.New("cycle detected in tag parent relation")

	// ErrConflict marks a unique-constraint violation (name or guid scope).
	ErrConflict = errors.New("conflict")

	// ErrDatabaseLocked marks an Open call that found another process
	// already holding the database's advisory lock file, without
	// StartupOptions.OverrideLockedDatabase set.
	ErrDatabaseLocked = errors.New("database locked by another process")
)

// InvalidArgumentf builds an ErrInvalidArgument with formatted context.
func InvalidArgumentf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

// NotFoundf builds an ErrNotFound with formatted context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// DatabaseRequestf wraps a driver error as ErrDatabaseRequest with an
// operation-name prefix, matching the teacher's wrapDBError convention.
func DatabaseRequestf(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrDatabaseRequest)
}
