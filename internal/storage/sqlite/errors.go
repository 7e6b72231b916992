package sqlite

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/evernotelocal/qstore/internal/types"
)

// wrapDBError converts a raw database/sql / driver error into the public
// error taxonomy (types.Err*), matching the teacher's
// internal/storage/sqlite/errors.go wrapDBError convention: classify known
// SQLite failure texts into a sentinel, wrap everything else as a generic
// database request failure.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return types.NotFoundf("%s", op)
	}
	msg := err.Error()
	switch {
	case isUniqueConstraint(msg):
		return wrapAs(op, err, types.ErrConflict)
	case isForeignKeyConstraint(msg):
		return wrapAs(op, err, types.ErrInvalidArgument)
	default:
		return types.DatabaseRequestf(op, err)
	}
}

func wrapAs(op string, err error, sentinel error) error {
	return &wrappedError{op: op, cause: err, sentinel: sentinel}
}

type wrappedError struct {
	op       string
	cause    error
	sentinel error
}

func (e *wrappedError) Error() string {
	return e.op + ": " + e.cause.Error() + ": " + e.sentinel.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.sentinel
}

func isUniqueConstraint(msg string) bool {
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLITE_CONSTRAINT_UNIQUE")
}

func isForeignKeyConstraint(msg string) bool {
	return strings.Contains(msg, "FOREIGN KEY constraint failed") || strings.Contains(msg, "SQLITE_CONSTRAINT_FOREIGNKEY")
}

func isBusyOrLocked(msg string) bool {
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "SQLITE_LOCKED") ||
		strings.Contains(msg, "database is locked")
}

// IsBusyOrLocked reports whether err is a transient SQLITE_BUSY/LOCKED
// failure the dispatcher's writer loop should retry rather than surface.
func IsBusyOrLocked(err error) bool {
	if err == nil {
		return false
	}
	return isBusyOrLocked(err.Error())
}
